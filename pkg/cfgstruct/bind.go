// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cfgstruct turns a tagged Go struct into a set of pflag flags,
// so the kademlia tunables (K, A, B_VAL, REQUEST_TIMEOUT,
// BUCKET_REFRESH_INTERVAL) can be set from the command line or a config
// file instead of hardcoded per-call arguments.
package cfgstruct

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
)

// BindOpt configures how Bind resolves $CONFDIR substitutions in
// `default` tags.
type BindOpt func(*bindOpts)

type bindOpts struct {
	confDir string
	nested  bool
}

// ConfDir substitutes $CONFDIR / ${CONFDIR} in every `default` tag with
// path, regardless of nesting depth.
func ConfDir(path string) BindOpt {
	return func(o *bindOpts) {
		o.confDir = path
		o.nested = false
	}
}

// ConfDirNested substitutes $CONFDIR / ${CONFDIR} with path joined with
// the kebab-case field name of every enclosing struct, so nested
// sections get their own subdirectory under path.
func ConfDirNested(path string) BindOpt {
	return func(o *bindOpts) {
		o.confDir = path
		o.nested = true
	}
}

// Bind registers a pflag for every leaf field of config (a pointer to a
// struct), named by the kebab-case, dot-joined path of its field names,
// defaulted from its `default` struct tag and documented by its `help`
// tag.
func Bind(f *pflag.FlagSet, config interface{}, opts ...BindOpt) {
	var o bindOpts
	for _, opt := range opts {
		opt(&o)
	}

	v := reflect.ValueOf(config)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		panic("cfgstruct: Bind requires a pointer to a struct")
	}
	bindStruct(f, "", v.Elem(), o.confDir, o.nested)
}

func bindStruct(f *pflag.FlagSet, prefix string, v reflect.Value, confDir string, nested bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		name := prefix + kebabCase(field.Name)

		switch {
		case fv.Kind() == reflect.Struct:
			childDir := confDir
			if nested {
				childDir = filepath.Join(confDir, kebabCase(field.Name))
			}
			bindStruct(f, name+".", fv, childDir, nested)

		case fv.Kind() == reflect.Array && fv.Type().Elem().Kind() == reflect.Struct:
			width := len(strconv.Itoa(fv.Len()))
			for idx := 0; idx < fv.Len(); idx++ {
				elemPrefix := fmt.Sprintf("%s.%0*d.", name, width, idx)
				bindStruct(f, elemPrefix, fv.Index(idx), confDir, nested)
			}

		default:
			bindLeaf(f, name, field, fv, confDir)
		}
	}
}

func bindLeaf(f *pflag.FlagSet, name string, field reflect.StructField, fv reflect.Value, confDir string) {
	def := field.Tag.Get("default")
	help := field.Tag.Get("help")
	def = strings.NewReplacer("${CONFDIR}", confDir, "$CONFDIR", confDir).Replace(def)

	addr := fv.Addr().Interface()

	switch ptr := addr.(type) {
	case *string:
		f.StringVar(ptr, name, def, help)
	case *bool:
		val, err := strconv.ParseBool(orZero(def, "false"))
		panicIfInvalid(name, def, err)
		f.BoolVar(ptr, name, val, help)
	case *time.Duration:
		val, err := time.ParseDuration(orZero(def, "0"))
		panicIfInvalid(name, def, err)
		f.DurationVar(ptr, name, val, help)
	case *int64:
		val, err := strconv.ParseInt(orZero(def, "0"), 10, 64)
		panicIfInvalid(name, def, err)
		f.Int64Var(ptr, name, val, help)
	case *int:
		val, err := strconv.Atoi(orZero(def, "0"))
		panicIfInvalid(name, def, err)
		f.IntVar(ptr, name, val, help)
	case *uint64:
		val, err := strconv.ParseUint(orZero(def, "0"), 10, 64)
		panicIfInvalid(name, def, err)
		f.Uint64Var(ptr, name, val, help)
	case *uint:
		val, err := strconv.ParseUint(orZero(def, "0"), 10, 64)
		panicIfInvalid(name, def, err)
		f.UintVar(ptr, name, uint(val), help)
	case *float64:
		val, err := strconv.ParseFloat(orZero(def, "0"), 64)
		panicIfInvalid(name, def, err)
		f.Float64Var(ptr, name, val, help)
	default:
		panic(fmt.Sprintf("cfgstruct: unsupported field %q of kind %s", name, fv.Kind()))
	}
}

func orZero(s, zero string) string {
	if s == "" {
		return zero
	}
	return s
}

func panicIfInvalid(name, def string, err error) {
	if err != nil {
		panic(errs.New("cfgstruct: field %q has invalid default %q: %v", name, def, err))
	}
}

// kebabCase converts an exported Go field name like "BucketRefresh" into
// its flag form "bucket-refresh": a hyphen is inserted wherever an
// uppercase letter follows a lowercase letter or digit, then the whole
// string is lowercased.
func kebabCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && isUpper(r) && !isUpper(runes[i-1]) {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
