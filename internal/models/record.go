package models

// RawRecord is one employee description keyed by training-time column name.
// Values are whatever the transport decoded: JSON numbers, integers, numeric
// strings from form posts, strings, or booleans.
type RawRecord map[string]any
