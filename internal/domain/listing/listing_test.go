package listing

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/flagdex/internal/domain"
)

func TestParseOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    Order
		wantErr bool
	}{
		{"", OrderNewest, false},
		{"newest", OrderNewest, false},
		{"oldest", OrderOldest, false},
		{"random", "", true},
	}
	for _, tc := range tests {
		got, err := ParseOrder(tc.in)
		if tc.wantErr {
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("ParseOrder(%q) err = %v, want ErrInvalidRequest", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseOrder(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestQuery_Offset(t *testing.T) {
	if n, err := (Query{}).Offset(); n != 0 || err != nil {
		t.Errorf("empty cursor = %d, %v", n, err)
	}
	if n, err := (Query{Cursor: "40"}).Offset(); n != 40 || err != nil {
		t.Errorf("cursor 40 = %d, %v", n, err)
	}
	for _, c := range []string{"abc", "-1"} {
		if _, err := (Query{Cursor: c}).Offset(); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("cursor %q err = %v, want ErrInvalidRequest", c, err)
		}
	}
}
