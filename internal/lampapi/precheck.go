package lampapi

import (
	"context"
	"fmt"
)

// PrecheckError reports the CRUD step that did not behave as expected. Status
// is 0 when the request never got a response.
type PrecheckError struct {
	Step   string
	Status int
	Err    error
}

func (e *PrecheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precheck %s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("precheck %s failed (%d)", e.Step, e.Status)
}

func (e *PrecheckError) Unwrap() error { return e.Err }

// Precheck exercises create, get, update, list and delete once, in that
// order, and fails on the first step that does not return its expected
// status. The lamp created by the first step is the one deleted by the last.
func (c *Client) Precheck(ctx context.Context) error {
	create, err := c.Create(ctx, true)
	if err != nil {
		return &PrecheckError{Step: "create", Err: err}
	}
	lamp, ok := DecodeLamp(create.Body)
	if create.Status != 201 || !ok {
		return &PrecheckError{Step: "create", Status: create.Status}
	}

	get, err := c.Get(ctx, lamp.ID)
	if err != nil {
		return &PrecheckError{Step: "get", Err: err}
	}
	if get.Status != 200 {
		return &PrecheckError{Step: "get", Status: get.Status}
	}

	update, err := c.Update(ctx, lamp.ID, false)
	if err != nil {
		return &PrecheckError{Step: "update", Err: err}
	}
	if update.Status != 200 {
		return &PrecheckError{Step: "update", Status: update.Status}
	}

	list, err := c.List(ctx, 1, "")
	if err != nil {
		return &PrecheckError{Step: "list", Err: err}
	}
	if _, hasData, _ := DecodePage(list.Body); list.Status != 200 || !hasData {
		return &PrecheckError{Step: "list", Status: list.Status}
	}

	del, err := c.Delete(ctx, lamp.ID)
	if err != nil {
		return &PrecheckError{Step: "delete", Err: err}
	}
	if del.Status != 204 {
		return &PrecheckError{Step: "delete", Status: del.Status}
	}
	return nil
}
