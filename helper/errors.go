package helper

import "fmt"

// NewError wraps an error with the task it occurred in
func NewError(task string, err error) error {
	return fmt.Errorf("error in %v: %w", task, err)
}
