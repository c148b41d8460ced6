// Copyright 2024 Gustavo C. Viegas. All rights reserved.

// Package rgraph implements the frame-graph dispatcher: it compiles a
// user-declared render graph into an ordered, barrier-correct execution
// plan for a driver.GPU command stream.
package rgraph

import "errors"

const rgPrefix = "rgraph: "

func newRGErr(reason string) error { return errors.New(rgPrefix + reason) }
