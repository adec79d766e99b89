package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/jointcomp/jointcomp/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// SafeGroup wraps errgroup.Group so a panicking builder fails the run
// instead of the process
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a new SafeGroup with panic recovery
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{
		group:  g,
		logger: log,
	}, ctx
}

// Go runs fn in a new goroutine; a panic becomes the group's error
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Builder panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("builder panic: %v", r)
			}
		}()
		return fn()
	})
}

// SetLimit caps concurrent goroutines; n <= 0 means no limit
func (sg *SafeGroup) SetLimit(n int) {
	if n <= 0 {
		n = -1
	}
	sg.group.SetLimit(n)
}

// Wait blocks until all goroutines return and reports the first error
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
