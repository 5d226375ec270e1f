package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"

	"bedplanner/internal/config"
	"bedplanner/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupPostgres skips unless BEDPLANNER_TEST_DATABASE_URL points at a
// disposable database. The tables are truncated before the test.
func setupPostgres(t *testing.T) *config.Config {
	t.Helper()
	url := os.Getenv("BEDPLANNER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BEDPLANNER_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := database.Open(ctx, url)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE TABLE events, hospital_stays, beds, patients`)
	require.NoError(t, err)

	cfg := memoryConfig()
	cfg.Storage.Driver = config.StoragePostgres
	cfg.Storage.DatabaseURL = url
	return cfg
}

func TestPostgres_ConcurrentPlacementsNeverDoubleBook(t *testing.T) {
	cfg := setupPostgres(t)
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.Equal(t, http.StatusCreated, post(t, a.Router, "/beds", `{"id":"B1","room_id":"R1","code":"101-A"}`))
	const callers = 10
	for i := 0; i < callers; i++ {
		body := fmt.Sprintf(`{"id":"P%02d","first_name":"A","last_name":"B","birth_date":"1980-01-01","sex":"other"}`, i)
		require.Equal(t, http.StatusCreated, post(t, a.Router, "/patients", body))
	}

	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"patient_id":"P%02d","stay_type":"week","admission_date":"2025-01-15"}`, i)
			codes[i] = post(t, a.Router, "/placements", body)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusNoContent, code)
		}
	}
	assert.Equal(t, 1, created)
}
