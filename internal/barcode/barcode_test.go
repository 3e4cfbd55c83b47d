package barcode

import (
	"strings"
	"sync"
	"testing"
	"time"

	"tessera/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFormat(t *testing.T) {
	g := NewGenerator("NODE1")
	g.now = func() time.Time { return time.Unix(0, 36) }

	code := g.Next(models.SeatKey{EventID: 12, Row: "B", Number: 7})
	assert.Equal(t, "12-B7-10-NODE1-1", code)
}

func TestInstanceIDsDifferingInCaseStayDistinct(t *testing.T) {
	frozen := time.Unix(0, 36)
	seat := models.SeatKey{EventID: 1, Row: "A", Number: 1}

	codes := make(map[string]string)
	for _, id := range []string{"node-a", "NODE-A", "Node-A"} {
		g := NewGenerator(id)
		g.now = func() time.Time { return frozen }
		code := g.Next(seat)
		assert.Equal(t, strings.ToUpper(code), code)
		codes[code] = id
	}
	assert.Len(t, codes, 3)

	// the digest is stable per id
	assert.Equal(t, NewGenerator("node-a").Instance(), NewGenerator("node-a").Instance())
	assert.Equal(t, "NODE-A", NewGenerator("NODE-A").Instance())
}

func TestNextUniqueWithFrozenClock(t *testing.T) {
	g := NewGenerator("")
	frozen := time.Now()
	g.now = func() time.Time { return frozen }
	seat := models.SeatKey{EventID: 1, Row: "A", Number: 1}

	const workers, perWorker = 16, 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				code := g.Next(seat)
				mu.Lock()
				seen[code] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestGeneratorsHaveDistinctInstances(t *testing.T) {
	a, b := NewGenerator(""), NewGenerator("")
	require.NotEqual(t, a.Instance(), b.Instance())

	seat := models.SeatKey{EventID: 1, Row: "A", Number: 1}
	assert.NotEqual(t, a.Next(seat), b.Next(seat))
	assert.True(t, strings.HasPrefix(a.Next(seat), "1-A1-"))
}
