package compiler

import (
	stderrors "errors"
	"fmt"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/reconcile/internal/ir"
)

// ConstructionsField is the top-level CUE field holding constructions.
const ConstructionsField = "construction"

// CompileConstructions compiles every construction under the
// "construction" field of v, in declaration order. With failFast it stops
// at the first error; otherwise it collects all of them.
func CompileConstructions(v cue.Value, failFast bool) ([]*ir.Construction, []error) {
	field := v.LookupPath(cue.ParsePath(ConstructionsField))
	if !field.Exists() {
		return nil, nil
	}

	iter, err := field.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		out  []*ir.Construction
		errs []error
	)
	for iter.Next() {
		c, err := CompileConstruction(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("construction %s: %w", iter.Selector().Unquoted(), err))
			if failFast {
				return out, errs
			}
			continue
		}
		out = append(out, c)
	}
	return out, errs
}

// LoadFiles builds the given CUE files as one instance and compiles the
// constructions they define. The files must belong to the same package.
func LoadFiles(files ...string) ([]*ir.Construction, error) {
	if len(files) == 0 {
		return nil, nil
	}

	instances := load.Instances(files, &load.Config{Dir: filepath.Dir(files[0])})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %v", files)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	constructions, errs := CompileConstructions(value, false)
	if len(errs) > 0 {
		return nil, stderrors.Join(errs...)
	}
	return constructions, nil
}
