package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/geo"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/database"
)

const (
	ZonesKey         = "driver_zones"
	zoneWriteTimeout = 5 * time.Second
)

// ZoneRegistry owns the driver's geofences.
//
// Persistence is best effort. Add and Remove update memory and return; the
// full list is then written to the store on a detached goroutine. A failed
// write is logged and does not roll memory back, so the store can lag behind
// until the next successful write. Writes are applied in mutation order and an
// older snapshot never replaces a newer one. Call Flush to wait for them.
type ZoneRegistry struct {
	store database.KeyValueStore
	newID func() string

	mu      sync.RWMutex
	zones   []domain.Zone
	version uint64

	writeMu sync.Mutex
	written uint64
	pending sync.WaitGroup
}

// NewZoneRegistry loads the persisted zones. Any read or decode failure
// leaves the registry empty.
func NewZoneRegistry(ctx context.Context, store database.KeyValueStore) *ZoneRegistry {
	r := &ZoneRegistry{
		store: store,
		newID: uuid.NewString,
	}
	r.zones = r.load(ctx)
	return r
}

func (r *ZoneRegistry) load(ctx context.Context) []domain.Zone {
	raw, err := r.store.Get(ctx, ZonesKey)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Printf("load driver zones error: %v", err)
		return nil
	}

	var zones []domain.Zone
	if err := json.Unmarshal(raw, &zones); err != nil {
		log.Printf("malformed driver zones, starting empty: %v", err)
		return nil
	}
	for i := range zones {
		zones[i].RadiusMeters = clampRadius(zones[i].RadiusMeters)
	}
	return zones
}

// Add registers a new zone. Radii under MinZoneRadiusMeters are raised to it.
func (r *ZoneRegistry) Add(center domain.Coordinate, radiusMeters float64, name string) domain.Zone {
	zone := domain.Zone{
		ID:           r.newID(),
		Center:       center,
		RadiusMeters: clampRadius(radiusMeters),
		Name:         name,
	}

	r.mu.Lock()
	r.zones = append(r.zones, zone)
	snapshot, version := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snapshot, version)
	return zone
}

// Remove drops the zone with the given id. Unknown ids are ignored but the
// list is still written.
func (r *ZoneRegistry) Remove(id string) {
	r.mu.Lock()
	kept := r.zones[:0:0]
	for _, z := range r.zones {
		if z.ID != id {
			kept = append(kept, z)
		}
	}
	r.zones = kept
	snapshot, version := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snapshot, version)
}

// Contains reports whether point lies in any registered zone.
func (r *ZoneRegistry) Contains(point domain.Coordinate) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, z := range r.zones {
		if geo.IsWithin(point, z) {
			return true
		}
	}
	return false
}

func (r *ZoneRegistry) List() []domain.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

func (r *ZoneRegistry) Get(id string) (domain.Zone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, z := range r.zones {
		if z.ID == id {
			return z, true
		}
	}
	return domain.Zone{}, false
}

// Flush blocks until every write started so far has finished.
func (r *ZoneRegistry) Flush() {
	r.pending.Wait()
}

func (r *ZoneRegistry) snapshotLocked() ([]domain.Zone, uint64) {
	r.version++
	out := make([]domain.Zone, len(r.zones))
	copy(out, r.zones)
	return out, r.version
}

func (r *ZoneRegistry) persist(zones []domain.Zone, version uint64) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()

		r.writeMu.Lock()
		defer r.writeMu.Unlock()
		if version <= r.written {
			return
		}
		r.written = version

		body, err := json.Marshal(zones)
		if err != nil {
			log.Printf("marshal driver zones error: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), zoneWriteTimeout)
		defer cancel()
		if err := r.store.Set(ctx, ZonesKey, body); err != nil {
			log.Printf("save driver zones error: %v", err)
		}
	}()
}

func clampRadius(radius float64) float64 {
	if !(radius >= domain.MinZoneRadiusMeters) {
		return domain.MinZoneRadiusMeters
	}
	return radius
}
