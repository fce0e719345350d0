package cart

import (
	"errors"
	"os"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	require.NoError(t, err)

	_, ok, err := fs.Read("cart:abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.Write("cart:abc", `{"v":1}`))
	require.NoError(t, fs.Write("cart:abc", `{"v":1,"lines":[]}`))

	got, ok, err := fs.Read("cart:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"v":1,"lines":[]}`, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are renamed away")
}

func TestFileStorage_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	require.NoError(t, err)

	s := NewStore(fs, zap.NewNop())
	_, _ = s.Add(product("a", "2.50"))
	_, _ = s.Add(product("a", "2.50"))

	fs2, err := NewFileStorage(dir)
	require.NoError(t, err)
	restored := NewStore(fs2, zap.NewNop())

	require.Equal(t, 1, restored.LineCount())
	assert.Equal(t, 2, restored.Lines()[0].Quantity)
	assert.Equal(t, "5.00", restored.Total().StringFixed(2))
}

func TestPostgresStorage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	st := NewPostgresStorage(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM cart_snapshots WHERE key = $1`)).
		WithArgs("cart:s1").
		WillReturnError(pgx.ErrNoRows)
	_, ok, err := st.Read("cart:s1")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectExec(`INSERT INTO cart_snapshots`).
		WithArgs("cart:s1", `{"v":1}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, st.Write("cart:s1", `{"v":1}`))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT body FROM cart_snapshots WHERE key = $1`)).
		WithArgs("cart:s1").
		WillReturnRows(pgxmock.NewRows([]string{"body"}).AddRow(`{"v":1}`))
	got, ok, err := st.Read("cart:s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"v":1}`, got)

	mock.ExpectQuery(`SELECT body`).WillReturnError(errors.New("conn closed"))
	_, _, err = st.Read("cart:s1")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
