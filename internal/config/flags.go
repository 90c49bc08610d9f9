package config

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/pflag"
)

// BindFlags registers one flag per exported field of opts, a pointer to a
// flat struct. Flag names follow fieldNameToFlag so LoadConfig can tell
// which values came from the command line. The help, short and default
// tags supply usage text, shorthand and the initial value.
func BindFlags(fs *pflag.FlagSet, opts any) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if !fieldType.IsExported() {
			continue
		}
		field := v.Field(i)
		name := fieldNameToFlag(fieldType.Name)
		help := fieldType.Tag.Get("help")
		short := fieldType.Tag.Get("short")
		def := fieldType.Tag.Get("default")

		if def != "" {
			if err := setFieldValueFromString(field, def); err != nil {
				return fmt.Errorf("bad default for %s: %w", name, err)
			}
		}

		ptr := field.Addr().Interface()
		switch p := ptr.(type) {
		case *string:
			fs.StringVarP(p, name, short, *p, help)
		case *bool:
			fs.BoolVarP(p, name, short, *p, help)
		case *int:
			fs.IntVarP(p, name, short, *p, help)
		case *float64:
			fs.Float64VarP(p, name, short, *p, help)
		case *time.Duration:
			fs.DurationVarP(p, name, short, *p, help)
		case *[]string:
			fs.StringSliceVarP(p, name, short, *p, help)
		default:
			return fmt.Errorf("unsupported option type %s for %s", fieldType.Type, name)
		}
	}
	return nil
}
