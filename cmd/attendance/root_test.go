package main

import (
	"context"
	"errors"
	"testing"

	"face-attendance-go/internal/core/ledger"
	"face-attendance-go/internal/core/models"

	"github.com/spf13/cobra"
)

// closeTrackingStore merkt sich, ob Close aufgerufen wurde
type closeTrackingStore struct {
	closed bool
}

func (s *closeTrackingStore) Init(ctx context.Context) error { return nil }

func (s *closeTrackingStore) InsertIfAbsent(ctx context.Context, rec models.AttendanceRecord) (bool, error) {
	return true, nil
}

func (s *closeTrackingStore) List(ctx context.Context, date string) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func (s *closeTrackingStore) Close() error {
	s.closed = true
	return nil
}

func TestExecuteCommandClosesApplication(t *testing.T) {
	tests := []struct {
		name    string
		runErr  error
		wantErr bool
	}{
		{"command succeeds", nil, false},
		{"command fails", errors.New("failed to read attendance"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &closeTrackingStore{}
			cmd := &cobra.Command{
				Use:           "attendance",
				SilenceUsage:  true,
				SilenceErrors: true,
				PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
					application = &app{ledger: ledger.New(store)}
					return nil
				},
				RunE: func(cmd *cobra.Command, args []string) error {
					return tt.runErr
				},
			}
			cmd.SetArgs([]string{})

			err := executeCommand(context.Background(), cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("executeCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !store.closed {
				t.Error("attendance store was not closed")
			}
			if application != nil {
				t.Error("application should be reset after closing")
			}
		})
	}
}
