package lienos

import "github.com/3piecechickendinner/LeinOS/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Rate is re-exported from types package.
type Rate = types.Rate

// Date is re-exported from types package.
type Date = types.Date

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	USD   = types.USD
	Cents = types.Cents
	Zero  = types.Zero
	Sum   = types.Sum
)

// Re-export Rate and Date constructors
var (
	BasisPoints   = types.BasisPoints
	Percent       = types.Percent
	NewDate       = types.NewDate
	DateOf        = types.DateOf
	ParseDate     = types.ParseDate
	MustParseDate = types.MustParseDate
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
