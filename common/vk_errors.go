package common

import (
	"fmt"
	"log"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

// resultError turns a vk.Result into the error the renderer reacts on. Results the renderer has a sentinel
// for keep it as their cause so errors.Is still matches after the operation name is attached.
func resultError(r vk.Result, op string) error {
	switch r {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		return errors.Wrap(hal.ErrSuboptimal, op)
	case vk.ErrorOutOfDate:
		return errors.Wrap(hal.ErrOutOfDate, op)
	case vk.Timeout:
		return errors.Wrap(hal.ErrTimeout, op)
	case vk.ErrorOutOfPoolMemory:
		return errors.Wrap(hal.ErrOutOfPoolMemory, op)
	case vk.ErrorFragmentedPool:
		return errors.Wrap(hal.ErrFragmentedPool, op)
	case vk.ErrorDeviceLost:
		return errors.Wrap(hal.ErrDeviceLost, op)
	}
	return errors.Wrap(vk.Error(r), op)
}

// panicf ends the program on failures the renderer cannot continue from, such as a missing extension.
func panicf(format string, args ...any) {
	log.Panicf("vulkan: "+format, args...)
}

func errUnsupported(what string, v any) error {
	return errors.Wrap(hal.ErrUnsupported, fmt.Sprintf("%s %v", what, v))
}
