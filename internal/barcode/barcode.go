// Package barcode issues ticket barcodes.
//
// A barcode is "{event}-{row}{seat}-{unixnano base36}-{instance}-{seq}". The
// instance id separates processes and seq is a process-wide counter, so two
// barcodes issued by the same generator never collide, whatever the clock does.
// Barcodes are upper case; an instance id that is not already upper case gets
// a digest suffix so ids differing only in case stay distinct.
package barcode

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"tessera/internal/models"

	"github.com/google/uuid"
)

type Generator struct {
	instance string
	seq      atomic.Uint64
	now      func() time.Time
}

// NewGenerator returns a generator for this process. An empty instanceID is
// replaced by a random one.
func NewGenerator(instanceID string) *Generator {
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		instanceID = strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
	}
	return &Generator{instance: foldInstance(instanceID), now: time.Now}
}

func foldInstance(id string) string {
	upper := strings.ToUpper(id)
	if upper == id {
		return id
	}
	digest := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), "-", "")
	return upper + "." + strings.ToUpper(digest[:8])
}

// Instance returns the process component embedded in every barcode.
func (g *Generator) Instance() string {
	return g.instance
}

// Next issues a barcode for seat.
func (g *Generator) Next(seat models.SeatKey) string {
	seq := g.seq.Add(1)

	var b strings.Builder
	b.WriteString(strconv.FormatInt(seat.EventID, 10))
	b.WriteByte('-')
	b.WriteString(strings.ToUpper(seat.String()))
	b.WriteByte('-')
	b.WriteString(strings.ToUpper(strconv.FormatInt(g.now().UnixNano(), 36)))
	b.WriteByte('-')
	b.WriteString(g.instance)
	b.WriteByte('-')
	b.WriteString(strings.ToUpper(strconv.FormatUint(seq, 36)))
	return b.String()
}
