package model

import (
	"fmt"
	"reflect"
	"sync"
	"time"
	"unicode"
)

// Model represents table metadata derived from a struct type.
type Model struct {
	TableName string
	Fields    []*Field
	FieldMap  map[string]*Field
	PKField   *Field
}

// TableNamer lets a struct override its derived table name.
type TableNamer interface {
	TableName() string
}

var modelCache sync.Map

// GetModel returns the model metadata for a given value
func GetModel(value any) (*Model, error) {
	if value == nil {
		return nil, fmt.Errorf("value is nil")
	}

	typ := reflect.TypeOf(value)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("value must be a struct or pointer to struct, got %s", typ.Kind())
	}

	key := typ.PkgPath() + "." + typ.Name()
	if cached, ok := modelCache.Load(key); ok {
		return cached.(*Model), nil
	}

	m := parseModel(typ)
	if tn, ok := value.(TableNamer); ok {
		m.TableName = tn.TableName()
	}

	modelCache.Store(key, m)
	return m, nil
}

func parseModel(typ reflect.Type) *Model {
	m := &Model{
		TableName: camelToSnake(typ.Name()),
		FieldMap:  make(map[string]*Field),
	}

	for i := 0; i < typ.NumField(); i++ {
		structField := typ.Field(i)
		if !structField.IsExported() {
			continue
		}

		tag := ParseTag(structField.Tag.Get("dal"))
		if tag.Ignore {
			continue
		}

		columnName := tag.Column
		if columnName == "" {
			columnName = camelToSnake(structField.Name)
		}

		field := &Field{
			Name:      structField.Name,
			Column:    columnName,
			Type:      structField.Type,
			Index:     i,
			IsPK:      tag.PrimaryKey,
			IsAuto:    tag.AutoInc,
			Encrypt:   tag.Encrypt,
			OmitEmpty: tag.OmitEmpty,
		}

		m.Fields = append(m.Fields, field)
		m.FieldMap[columnName] = field

		if field.IsPK {
			m.PKField = field
		}
	}

	return m
}

// EncryptedColumns returns the columns tagged `encrypt`, in field order.
func (m *Model) EncryptedColumns() []string {
	var cols []string
	for _, f := range m.Fields {
		if f.Encrypt {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// Columns returns every mapped column, in field order.
func (m *Model) Columns() []string {
	cols := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// ToRecord converts a struct into a Record for writing.
// Auto-increment fields and zero-valued omitempty fields are skipped.
func ToRecord(value any) (*Record, error) {
	m, err := GetModel(value)
	if err != nil {
		return nil, err
	}
	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	rec := NewRecord()
	for _, field := range m.Fields {
		if field.IsAuto {
			continue
		}
		fVal := val.Field(field.Index)
		if field.OmitEmpty && fVal.IsZero() {
			continue
		}
		if err := rec.Set(field.Column, fVal.Interface()); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Scan copies the values of rec into the struct pointed to by dest.
// Columns without a matching field are ignored.
func Scan(rec *Record, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to a struct")
	}
	m, err := GetModel(dest)
	if err != nil {
		return err
	}
	elem := destValue.Elem()

	var scanErr error
	rec.Range(func(col string, v any) bool {
		field, ok := m.FieldMap[col]
		if !ok || v == nil {
			return true
		}
		if err := assign(elem.Field(field.Index), v); err != nil {
			scanErr = fmt.Errorf("column %s: %w", col, err)
			return false
		}
		return true
	})
	return scanErr
}

var timeType = reflect.TypeOf(time.Time{})

func assign(dst reflect.Value, v any) error {
	if dst.Kind() == reflect.Ptr {
		ptr := reflect.New(dst.Type().Elem())
		if err := assign(ptr.Elem(), v); err != nil {
			return err
		}
		dst.Set(ptr)
		return nil
	}

	if b, ok := v.([]byte); ok && dst.Kind() == reflect.String {
		dst.SetString(string(b))
		return nil
	}
	if s, ok := v.(string); ok && dst.Type() == timeType {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	src := reflect.ValueOf(v)
	if src.Type().ConvertibleTo(dst.Type()) {
		// string(int) is legal Go but never what a column means
		if dst.Kind() == reflect.String && src.Kind() != reflect.String {
			dst.SetString(fmt.Sprint(v))
			return nil
		}
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
}

func camelToSnake(s string) string {
	if s == "ID" {
		return "id"
	}
	var res []rune
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rune(s[i-1])) || (i+1 < len(s) && unicode.IsLower(rune(s[i+1])))) {
				res = append(res, '_')
			}
			res = append(res, unicode.ToLower(r))
		} else {
			res = append(res, r)
		}
	}
	return string(res)
}
