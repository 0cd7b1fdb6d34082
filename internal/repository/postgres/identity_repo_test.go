package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/reqflow/internal/domain"
)

func TestIdentityRepo_GetIdentity(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		want      *domain.Identity
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, first_name, last_name, username FROM bot_users").
					WithArgs(int64(200)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "username"}).
						AddRow(200, "Ира", nil, "ira"))
			},
			want: &domain.Identity{ID: 200, FirstName: "Ира", Username: "ira"},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, first_name, last_name, username FROM bot_users").
					WithArgs(int64(200)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "username"}))
			},
			wantErr: ErrIdentityNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tc.setupMock(mock)

			got, err := NewIdentityRepo(db).GetIdentity(context.Background(), 200)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIdentityRepo_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO bot_users .* ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs(int64(200), "Ира", "", "ira").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewIdentityRepo(db).Upsert(context.Background(), domain.Identity{ID: 200, FirstName: "Ира", Username: "ira"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
