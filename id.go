package lienos

import "github.com/3piecechickendinner/LeinOS/id"

// ID is the primary identifier type for all LeinOS entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
