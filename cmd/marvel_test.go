package cmd

import (
	"reflect"
	"testing"
)

func TestSplitTitles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  []string
	}{
		{"uncanny x-men", []string{"uncanny x-men"}},
		{"uncanny, daredevil ,  thor", []string{"uncanny", "daredevil", "thor"}},
		{" , ,", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitTitles(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitTitles(%q) = %v; want %v", tt.input, got, tt.want)
		}
	}
}
