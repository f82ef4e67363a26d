package domain

import (
	"database/sql/driver"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var columnJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// RefList is an ordered list of child document ids kept on a parent document.
// It is stored as a JSON array in a text column and rendered to clients as
// an array of id strings.
type RefList []int64

// Index returns the position of the first occurrence of id, or -1.
func (r RefList) Index(id int64) int {
	for i, v := range r {
		if v == id {
			return i
		}
	}
	return -1
}

func (r RefList) Contains(id int64) bool {
	return r.Index(id) >= 0
}

// Without returns a copy of the list with the element at i removed.
func (r RefList) Without(i int) RefList {
	if i < 0 || i >= len(r) {
		return append(RefList{}, r...)
	}
	out := make(RefList, 0, len(r)-1)
	out = append(out, r[:i]...)
	return append(out, r[i+1:]...)
}

func (r RefList) MarshalJSON() ([]byte, error) {
	ids := make([]string, len(r))
	for i, v := range r {
		ids[i] = strconv.FormatInt(v, 10)
	}
	return columnJSON.Marshal(ids)
}

// UnmarshalJSON accepts ids encoded either as strings or as numbers.
func (r *RefList) UnmarshalJSON(data []byte) error {
	var raw []jsoniter.RawMessage
	if err := columnJSON.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode reference list")
	}
	out := make(RefList, 0, len(raw))
	for _, item := range raw {
		s := strings.Trim(strings.TrimSpace(string(item)), `"`)
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid reference %s", string(item))
		}
		out = append(out, id)
	}
	*r = out
	return nil
}

func (r RefList) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	data, err := columnJSON.Marshal([]int64(r))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *RefList) Scan(value interface{}) error {
	data, err := columnBytes(value)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*r = RefList{}
		return nil
	}
	return r.UnmarshalJSON(data)
}

func (RefList) GormDataType() string {
	return "text"
}

// LineItems are the opaque sub-documents of an order.
type LineItems []map[string]interface{}

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := columnJSON.Marshal([]map[string]interface{}(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *LineItems) Scan(value interface{}) error {
	data, err := columnBytes(value)
	if err != nil {
		return err
	}
	items := LineItems{}
	if len(data) > 0 {
		if err := columnJSON.Unmarshal(data, (*[]map[string]interface{})(&items)); err != nil {
			return errors.Wrap(err, "decode line items")
		}
	}
	*l = items
	return nil
}

func (LineItems) GormDataType() string {
	return "text"
}

func columnBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.Errorf("unsupported column value %T", value)
	}
}
