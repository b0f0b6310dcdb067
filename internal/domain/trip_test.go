package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcraft/tripsync/internal/domain"
)

// fullTrip returns a trip with every field populated, including nested
// days, activities, notes, and budget items. Used by round-trip and clone
// tests that must cover the whole field set.
func fullTrip() domain.Trip {
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 1, 2, 10, 30, 0, 0, time.UTC)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	serverID := "s-42"
	title := "Fjords and Coffee"
	style := "slow travel"
	tier := "mid"
	loc := "Vigeland Park"
	cost := 120.0
	actNotes := "book ahead"
	budgetNote := "split with Sam"

	return domain.Trip{
		ID:          uuid.New(),
		ServerID:    &serverID,
		UserID:      uuid.New(),
		Title:       &title,
		Destination: "Oslo",
		StartDate:   &start,
		EndDate:     &end,
		TravelStyle: &style,
		BudgetTier:  &tier,
		Preferences: map[string]string{
			"pace":    "relaxed",
			"dietary": "vegetarian",
		},
		TotalBudgetEstimate: 2400,
		Days: []domain.Day{
			{
				DayIndex: 1,
				Date:     "2025-06-01",
				Summary:  "Arrival and city walk",
				Activities: []domain.Activity{
					{
						Time:          "10:00",
						Title:         "Sculpture park",
						Description:   "Morning walk",
						Location:      &loc,
						EstimatedCost: &cost,
						Notes:         &actNotes,
						Completed:     false,
					},
					{Time: "19:00", Title: "Dinner", Completed: true},
				},
			},
			{DayIndex: 2, Date: "2025-06-02", Summary: "Museums"},
		},
		Notes: []domain.Note{
			{Content: "bring rain jacket", CreatedAt: created},
		},
		BudgetItems: []domain.BudgetItem{
			{Category: "lodging", Amount: 900, Note: &budgetNote},
			{Category: "food", Amount: 500},
		},
		LocalTips:      []string{"trams are faster than buses"},
		IsSynced:       true,
		LocalUpdatedAt: updated,
		CreatedAt:      created,
	}
}

func TestNewTrip(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	trip := domain.NewTrip(userID, "Lisbon", now)

	assert.NotEqual(t, uuid.Nil, trip.ID, "ID should be client-generated")
	assert.Nil(t, trip.ServerID, "new trip must not have a server ID")
	assert.Equal(t, userID, trip.UserID)
	assert.Equal(t, "Lisbon", trip.Destination)
	assert.False(t, trip.IsSynced)
	assert.Equal(t, now, trip.CreatedAt)
	assert.Equal(t, now, trip.LocalUpdatedAt)
	assert.Equal(t, domain.StateNew, trip.State())
}

func TestMarkModified_setsDirtyAndAdvancesTimestamp(t *testing.T) {
	trip := fullTrip()
	before := trip.LocalUpdatedAt

	trip.MarkModified(before.Add(5 * time.Minute))

	assert.False(t, trip.IsSynced, "any mutation clears the synced flag")
	assert.True(t, trip.LocalUpdatedAt.After(before))
	assert.Equal(t, domain.StatePendingPush, trip.State())
}

// TestMarkModified_monotonicUnderClockSkew verifies that LocalUpdatedAt is
// strictly greater than its previous value even when the wall clock has
// gone backwards or stands still.
func TestMarkModified_monotonicUnderClockSkew(t *testing.T) {
	trip := fullTrip()
	before := trip.LocalUpdatedAt

	// Clock reads one hour in the past.
	trip.MarkModified(before.Add(-time.Hour))
	assert.True(t, trip.LocalUpdatedAt.After(before), "backwards clock must not rewind the timestamp")

	// Clock stands still across two edits.
	mid := trip.LocalUpdatedAt
	trip.MarkModified(mid)
	assert.True(t, trip.LocalUpdatedAt.After(mid), "same-tick edit must still advance")
}

// TestMarkSynced_changesOnlySyncFields is the invariant the push phase
// relies on: a successful push sets ServerID and IsSynced and nothing else.
func TestMarkSynced_changesOnlySyncFields(t *testing.T) {
	trip := fullTrip()
	trip.ServerID = nil
	trip.IsSynced = false
	reference := trip.Clone()

	trip.MarkSynced("s-77")

	require.NotNil(t, trip.ServerID)
	assert.Equal(t, "s-77", *trip.ServerID)
	assert.True(t, trip.IsSynced)
	assert.Equal(t, domain.StateSynced, trip.State())

	// Every other field must be unchanged from the input.
	trip.ServerID = nil
	trip.IsSynced = false
	assert.Equal(t, reference, trip)
}

func TestMarkDeleted_tombstonesAndDirties(t *testing.T) {
	trip := fullTrip()
	now := trip.LocalUpdatedAt.Add(time.Minute)

	trip.MarkDeleted(now)

	require.NotNil(t, trip.DeletedAt)
	assert.Equal(t, now, *trip.DeletedAt)
	assert.False(t, trip.IsSynced, "tombstoning is a local mutation")
	assert.Equal(t, domain.StateDeleted, trip.State())
}

// TestTrip_JSONRoundTrip checks that every field, including nested days and
// activities, survives a marshal/unmarshal cycle unchanged.
func TestTrip_JSONRoundTrip(t *testing.T) {
	original := fullTrip()

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded domain.Trip
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original, decoded)
}

// TestTrip_JSONMissingOptionalFields verifies the wire contract: absent
// optional fields decode to zero values, never to an error.
func TestTrip_JSONMissingOptionalFields(t *testing.T) {
	raw := `{
		"id": "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		"user_id": "16fd2706-8baf-433b-82eb-8c7fada847da",
		"destination": "Kyoto",
		"is_synced": false,
		"local_updated_at": "2025-01-01T10:00:00Z",
		"created_at": "2025-01-01T10:00:00Z"
	}`

	var trip domain.Trip
	require.NoError(t, json.Unmarshal([]byte(raw), &trip))

	assert.Equal(t, "Kyoto", trip.Destination)
	assert.Nil(t, trip.ServerID)
	assert.Nil(t, trip.Title)
	assert.Nil(t, trip.StartDate)
	assert.Empty(t, trip.Days)
	assert.Empty(t, trip.Notes)
	assert.Zero(t, trip.TotalBudgetEstimate)
}

func TestTrip_Clone_deepCopies(t *testing.T) {
	original := fullTrip()
	cp := original.Clone()

	require.Equal(t, original, cp)

	// Mutating the copy must not leak into the original.
	cp.Days[0].Activities[0].Title = "changed"
	*cp.ServerID = "s-other"
	cp.Preferences["pace"] = "hectic"
	cp.LocalTips[0] = "changed"

	assert.Equal(t, "Sculpture park", original.Days[0].Activities[0].Title)
	assert.Equal(t, "s-42", *original.ServerID)
	assert.Equal(t, "relaxed", original.Preferences["pace"])
	assert.Equal(t, "trams are faster than buses", original.LocalTips[0])
}

func TestTrip_Validate(t *testing.T) {
	valid := fullTrip()
	require.NoError(t, valid.Validate())

	noDest := fullTrip()
	noDest.Destination = "   "
	assert.ErrorIs(t, noDest.Validate(), domain.ErrValidation)

	noUser := fullTrip()
	noUser.UserID = uuid.Nil
	assert.ErrorIs(t, noUser.Validate(), domain.ErrValidation)

	dupDays := fullTrip()
	dupDays.Days = []domain.Day{{DayIndex: 1}, {DayIndex: 1}}
	assert.ErrorIs(t, dupDays.Validate(), domain.ErrValidation)
}

func TestTrip_State(t *testing.T) {
	trip := domain.NewTrip(uuid.New(), "Rome", time.Now())
	assert.Equal(t, domain.StateNew, trip.State())

	trip.MarkSynced("s-1")
	assert.Equal(t, domain.StateSynced, trip.State())

	trip.MarkModified(time.Now())
	assert.Equal(t, domain.StatePendingPush, trip.State())

	trip.MarkDeleted(time.Now())
	assert.Equal(t, domain.StateDeleted, trip.State())
}
