package util

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// IsStructInitialized checks that every nillable field of the struct s points
// to is set. Fields tagged `wire:"-"` are initialized later and are skipped.
func IsStructInitialized(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return errors.New("struct is nil")
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.Errorf("expected struct, got %s", v.Kind())
	}

	t := v.Type()
	for i := range v.NumField() {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("wire") == "-" {
			continue
		}

		//nolint:exhaustive // only nillable kinds can be uninitialized
		switch v.Field(i).Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if v.Field(i).IsNil() {
				return fmt.Errorf("field %s is not initialized", field.Name)
			}
		}
	}

	return nil
}
