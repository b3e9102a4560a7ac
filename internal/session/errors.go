package session

import "errors"

// ErrDraining is returned by Submit once the session has begun tearing
// down (spec.md section 5: "no further SUBMITs are accepted once
// draining begins").
var ErrDraining = errors.New("session: draining")
