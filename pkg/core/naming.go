package core

import "reflect"

// NameOf produces the fully qualified name (package path + type name) of
// v, the canonical endpoint address. It is sugar over an explicit
// registration step: callers are always free to pick their own address
// string instead.
func NameOf(v interface{}) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
