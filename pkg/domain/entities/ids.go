package entities

import "strconv"

// LineID identifies a production line
type LineID int64

// OrderID identifies an accepted production order
type OrderID int64

// BatchID identifies a production batch (tanda)
type BatchID int64

func (id LineID) String() string  { return strconv.FormatInt(int64(id), 10) }
func (id OrderID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id BatchID) String() string { return strconv.FormatInt(int64(id), 10) }
