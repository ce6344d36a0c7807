package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

type attendanceKey struct {
	eventID string
	user    string
}

// MemoryStore is an in-process implementation of every repository, used when
// no database is configured and in tests. A single mutex serializes writes so
// RSVP capacity and check-in uniqueness hold under concurrent requests.
type MemoryStore struct {
	mu sync.RWMutex

	events        map[string]*models.Event
	seedAttendees map[string]int
	rsvps         map[attendanceKey]*models.RSVP
	checkIns      map[attendanceKey]*models.CheckIn
	stamps        map[attendanceKey]*models.Stamp
	profiles      map[string]*models.UserProfile
	jobs          map[string]*jobEntry
}

type jobEntry struct {
	job       models.StampJob
	readyAt   time.Time
	claimedBy bool
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:        make(map[string]*models.Event),
		seedAttendees: make(map[string]int),
		rsvps:         make(map[attendanceKey]*models.RSVP),
		checkIns:      make(map[attendanceKey]*models.CheckIn),
		stamps:        make(map[attendanceKey]*models.Stamp),
		profiles:      make(map[string]*models.UserProfile),
		jobs:          make(map[string]*jobEntry),
	}
}

// NewDemoStore creates a store seeded with the demo catalog. Seeded attendee
// counts are shown in attendeeCount but capacity applies to confirmed RSVPs only,
// as it does in Postgres.
func NewDemoStore(now time.Time) *MemoryStore {
	s := NewMemoryStore()
	for _, e := range DemoEvents(now) {
		s.events[e.ID] = e
		s.seedAttendees[e.ID] = e.AttendeeCount
	}
	return s
}

func key(eventID, user string) attendanceKey {
	return attendanceKey{eventID: eventID, user: types.NormalizeAddress(user)}
}

// confirmedLocked counts confirmed RSVPs. Caller holds mu.
func (s *MemoryStore) confirmedLocked(eventID string) int {
	n := 0
	for k, r := range s.rsvps {
		if k.eventID == eventID && r.Status == types.RSVPConfirmed {
			n++
		}
	}
	return n
}

func (s *MemoryStore) eventCopyLocked(e *models.Event) *models.Event {
	cp := *e
	cp.Tags = append([]string(nil), e.Tags...)
	cp.AttendeeCount = s.seedAttendees[e.ID] + s.confirmedLocked(e.ID)
	return &cp
}

// ListEvents returns events matching the filter ordered by start date
func (s *MemoryStore) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	filter = filter.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*models.Event, 0, len(s.events))
	for _, e := range s.events {
		if filter.Matches(e) {
			events = append(events, s.eventCopyLocked(e))
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartDate.Before(events[j].StartDate)
	})
	return events, nil
}

// GetEvent retrieves a single event
func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.eventCopyLocked(e), nil
}

// CreateEvent inserts a new event
func (s *MemoryStore) CreateEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	cp.Organizer.Address = types.NormalizeAddress(cp.Organizer.Address)
	s.events[event.ID] = &cp
	return nil
}

// ImportEvent stores an external event unless one with its id exists
func (s *MemoryStore) ImportEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return nil
	}
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

// UpdateEvent overwrites an existing event
func (s *MemoryStore) UpdateEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; !ok {
		return ErrNotFound
	}
	cp := *event
	cp.UpdatedAt = time.Now().UTC()
	s.events[event.ID] = &cp
	event.UpdatedAt = cp.UpdatedAt
	return nil
}

// DeleteEvent removes an event owned by organizer
func (s *MemoryStore) DeleteEvent(ctx context.Context, id, organizer string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok || types.NormalizeAddress(e.Organizer.Address) != types.NormalizeAddress(organizer) {
		return false, nil
	}
	delete(s.events, id)
	delete(s.seedAttendees, id)
	for k := range s.rsvps {
		if k.eventID == id {
			delete(s.rsvps, k)
			delete(s.checkIns, k)
			delete(s.stamps, k)
		}
	}
	return true, nil
}

// ReserveRSVP creates or reactivates a confirmed RSVP
func (s *MemoryStore) ReserveRSVP(ctx context.Context, eventID, userAddress string, at time.Time) (*models.RSVP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	k := key(eventID, userAddress)
	existing, has := s.rsvps[k]
	if has && existing.Status != types.RSVPCancelled {
		return nil, apperrors.ErrAlreadyRSVPd
	}
	if e.IsFull(s.confirmedLocked(eventID)) {
		return nil, apperrors.ErrEventAtCapacity
	}

	if has {
		existing.Status = types.RSVPConfirmed
		existing.RSVPDate = at
		cp := *existing
		return &cp, nil
	}

	rsvp := &models.RSVP{
		ID:          uuid.New().String(),
		EventID:     eventID,
		UserAddress: k.user,
		Status:      types.RSVPConfirmed,
		RSVPDate:    at,
	}
	s.rsvps[k] = rsvp
	cp := *rsvp
	return &cp, nil
}

// CancelRSVP marks an active RSVP as cancelled
func (s *MemoryStore) CancelRSVP(ctx context.Context, eventID, userAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rsvps[key(eventID, userAddress)]
	if !ok || r.Status == types.RSVPCancelled {
		return ErrNotFound
	}
	r.Status = types.RSVPCancelled
	return nil
}

// GetRSVP returns the RSVP for (event, user)
func (s *MemoryStore) GetRSVP(ctx context.Context, eventID, userAddress string) (*models.RSVP, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rsvps[key(eventID, userAddress)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ListUserRSVPs returns every RSVP of a wallet, newest first
func (s *MemoryStore) ListUserRSVPs(ctx context.Context, userAddress string) ([]*models.RSVP, error) {
	user := types.NormalizeAddress(userAddress)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.RSVP, 0)
	for k, r := range s.rsvps {
		if k.user == user {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RSVPDate.After(out[j].RSVPDate) })
	return out, nil
}

// RecordCheckIn verifies the RSVP and writes check-in, stamp and profile credit
// atomically with respect to other store calls.
func (s *MemoryStore) RecordCheckIn(ctx context.Context, rec CheckInRecord) (*models.CheckInResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(rec.Event.ID, rec.UserAddress)
	rsvp, ok := s.rsvps[k]
	if !ok || rsvp.Status != types.RSVPConfirmed {
		return nil, apperrors.ErrNoValidRSVP
	}
	if _, done := s.checkIns[k]; done {
		return nil, apperrors.ErrAlreadyCheckedIn
	}

	checkIn := &models.CheckIn{
		ID:           uuid.New().String(),
		EventID:      rec.Event.ID,
		UserAddress:  k.user,
		CheckInTime:  rec.At,
		QRCodeData:   rec.QRCodeData,
		StampAwarded: true,
	}
	stamp := models.NewEventStamp(uuid.New().String(), rec.Event, k.user, rec.At)

	profile, ok := s.profiles[k.user]
	if !ok {
		fresh := models.NewUserProfile(k.user, rec.At)
		profile = &fresh
		s.profiles[k.user] = profile
	}
	profile.AwardStamp(stamp.XP, rec.At)

	at := rec.At
	rsvp.CheckInDate = &at
	s.checkIns[k] = checkIn
	s.stamps[k] = &stamp

	if rec.MirrorStamp {
		stampID := stamp.ID
		s.enqueueLocked(types.JobAddStamp, k.user, &stampID, rec.At)
	}

	return &models.CheckInResult{CheckIn: *checkIn, Stamp: stamp, Profile: *profile}, nil
}

// ListUserCheckIns returns every check-in of a wallet, newest first
func (s *MemoryStore) ListUserCheckIns(ctx context.Context, userAddress string) ([]*models.CheckIn, error) {
	user := types.NormalizeAddress(userAddress)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CheckIn, 0)
	for k, c := range s.checkIns {
		if k.user == user {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckInTime.After(out[j].CheckInTime) })
	return out, nil
}

// ListUserStamps returns every stamp a wallet holds, newest first
func (s *MemoryStore) ListUserStamps(ctx context.Context, userAddress string) ([]*models.Stamp, error) {
	user := types.NormalizeAddress(userAddress)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Stamp, 0)
	for k, st := range s.stamps {
		if k.user == user {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AwardedAt.After(out[j].AwardedAt) })
	return out, nil
}

// AttendanceCounts aggregates RSVP and check-in counts for an event
func (s *MemoryStore) AttendanceCounts(ctx context.Context, eventID string) (*models.AttendanceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	stats := &models.AttendanceStats{
		EventID:   eventID,
		Capacity:  e.Capacity,
		Confirmed: s.confirmedLocked(eventID),
		Source:    "store",
	}
	for k, r := range s.rsvps {
		if k.eventID == eventID && r.Status == types.RSVPCancelled {
			stats.Cancelled++
		}
	}
	for k, c := range s.checkIns {
		if k.eventID != eventID {
			continue
		}
		stats.CheckedIn++
		if st, ok := s.stamps[k]; ok {
			stats.XPAwarded += int64(st.XP)
		}
		if stats.LastCheckInAt == nil || c.CheckInTime.After(*stats.LastCheckInAt) {
			t := c.CheckInTime
			stats.LastCheckInAt = &t
		}
	}
	return stats, nil
}

// GetProfile returns the profile of a wallet
func (s *MemoryStore) GetProfile(ctx context.Context, address string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[types.NormalizeAddress(address)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// EnsureProfile returns the wallet's profile, creating it if needed
func (s *MemoryStore) EnsureProfile(ctx context.Context, address string, now time.Time) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := types.NormalizeAddress(address)
	p, ok := s.profiles[addr]
	if !ok {
		fresh := models.NewUserProfile(addr, now)
		p = &fresh
		s.profiles[addr] = p
	}
	p.LastActive = now
	cp := *p
	return &cp, nil
}

// UpdateProfile stores the user-editable fields of a profile
func (s *MemoryStore) UpdateProfile(ctx context.Context, profile *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[types.NormalizeAddress(profile.Address)]
	if !ok {
		return ErrNotFound
	}
	p.ENSName = profile.ENSName
	p.Avatar = profile.Avatar
	p.Preferences = profile.Preferences
	p.LastActive = profile.LastActive
	return nil
}

func (s *MemoryStore) enqueueLocked(action types.StampJobAction, user string, stampID *string, at time.Time) {
	id := uuid.New().String()
	s.jobs[id] = &jobEntry{
		job: models.StampJob{
			ID:          id,
			Action:      action,
			UserAddress: user,
			StampID:     stampID,
			Status:      types.JobQueued,
			CreatedAt:   at,
			UpdatedAt:   at,
		},
		readyAt: at,
	}
}

// EnqueueJob adds an on-chain job
func (s *MemoryStore) EnqueueJob(ctx context.Context, action types.StampJobAction, userAddress string, stampID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(action, types.NormalizeAddress(userAddress), stampID, time.Now().UTC())
	return nil
}

// ClaimJobs marks up to limit ready jobs in_progress and returns them
func (s *MemoryStore) ClaimJobs(ctx context.Context, limit int) ([]*models.StampJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	ready := make([]*jobEntry, 0)
	for _, j := range s.jobs {
		claimable := j.job.Status == types.JobQueued || j.job.Status == types.JobSubmitted
		if claimable && !j.readyAt.After(now) {
			ready = append(ready, j)
		}
	}
	sort.Slice(ready, func(a, b int) bool { return ready[a].job.CreatedAt.Before(ready[b].job.CreatedAt) })

	out := make([]*models.StampJob, 0, limit)
	for _, j := range ready {
		if len(out) == limit {
			break
		}
		j.job.Status = types.JobInProgress
		j.job.Attempts++
		j.job.UpdatedAt = now
		cp := j.job
		out = append(out, &cp)
	}
	return out, nil
}

// MarkSubmitted stores the hash of a broadcast transaction
func (s *MemoryStore) MarkSubmitted(ctx context.Context, job *models.StampJob, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[job.ID]; ok {
		j.job.TxHash = &txHash
		j.job.Status = types.JobSubmitted
	}
	job.TxHash = &txHash
	job.Status = types.JobSubmitted
	return nil
}

// CompleteJob records the confirmed transaction on the job and its stamp
func (s *MemoryStore) CompleteJob(ctx context.Context, job *models.StampJob, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[job.ID]
	if !ok {
		return ErrNotFound
	}
	j.job.Status = types.JobCompleted
	j.job.TxHash = &txHash
	j.job.LastError = nil
	if job.StampID != nil {
		for _, st := range s.stamps {
			if st.ID == *job.StampID {
				hash := txHash
				st.TxHash = &hash
			}
		}
	}
	return nil
}

// FailJob requeues a job after retryAfter or marks it failed
func (s *MemoryStore) FailJob(ctx context.Context, job *models.StampJob, cause error, retryAfter time.Duration, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[job.ID]
	if !ok {
		return ErrNotFound
	}
	msg := cause.Error()
	j.job.LastError = &msg
	j.job.Status = types.JobQueued
	if j.job.TxHash != nil {
		j.job.Status = types.JobSubmitted
	}
	if j.job.Attempts >= maxAttempts {
		j.job.Status = types.JobFailed
	}
	j.readyAt = time.Now().UTC().Add(retryAfter)
	return nil
}

// Jobs returns a copy of every job, oldest first
func (s *MemoryStore) Jobs() []models.StampJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StampJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.job)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}
