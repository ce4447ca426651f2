package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSQLiteConflictError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", errors.New("SQLITE_BUSY: busy"), true},
		{"locked", fmt.Errorf("insert drawing: %w", errors.New("database is locked (5)")), true},
		{"table locked", errors.New("SQLITE_LOCKED"), true},
		{"constraint", errors.New("CHECK constraint failed"), false},
	}
	for _, tt := range tests {
		if got := IsSQLiteConflictError(tt.err); got != tt.want {
			t.Errorf("%s: IsSQLiteConflictError = %v, want %v", tt.name, got, tt.want)
		}
	}
}
