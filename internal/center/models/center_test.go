package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
)

func ptr[T any](v T) *T { return &v }

var now = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func validCreate() CreateCenterRequest {
	return CreateCenterRequest{
		Name:            "Centro",
		City:            "Campo Grande",
		Latitude:        ptr(-20.4697),
		Longitude:       ptr(-54.6201),
		ToleranceMeters: 100,
		Services:        []string{" Mapas ", "mapas", "", "Wi-Fi"},
	}
}

func TestNewCenter(t *testing.T) {
	t.Run("builds active center with normalized services", func(t *testing.T) {
		c, err := NewCenter(id.CenterID(uuid.New()), validCreate(), now)
		require.NoError(t, err)
		assert.True(t, c.Active)
		assert.Equal(t, []string{"Mapas", "Wi-Fi"}, c.Services)
		assert.Equal(t, now, c.CreatedAt)
		assert.Equal(t, now, c.UpdatedAt)
		assert.Equal(t, 100, c.Fence().ToleranceMeters)
		assert.Equal(t, -20.4697, c.Fence().Center.Latitude)
	})

	t.Run("honors explicit inactive flag", func(t *testing.T) {
		req := validCreate()
		req.Active = ptr(false)
		c, err := NewCenter(id.CenterID(uuid.New()), req, now)
		require.NoError(t, err)
		assert.False(t, c.Active)
	})

	t.Run("rejects non-positive tolerance", func(t *testing.T) {
		req := validCreate()
		req.ToleranceMeters = 0
		_, err := NewCenter(id.CenterID(uuid.New()), req, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects out of range latitude", func(t *testing.T) {
		req := validCreate()
		req.Latitude = ptr(91.0)
		_, err := NewCenter(id.CenterID(uuid.New()), req, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects blank name", func(t *testing.T) {
		req := validCreate()
		req.Name = "  "
		_, err := NewCenter(id.CenterID(uuid.New()), req, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestCenterApply(t *testing.T) {
	c, err := NewCenter(id.CenterID(uuid.New()), validCreate(), now)
	require.NoError(t, err)
	later := now.Add(time.Hour)

	t.Run("patches only supplied fields", func(t *testing.T) {
		require.NoError(t, c.Apply(UpdateCenterRequest{ToleranceMeters: ptr(250)}, later))
		assert.Equal(t, 250, c.ToleranceMeters)
		assert.Equal(t, "Centro", c.Name)
		assert.Equal(t, later, c.UpdatedAt)
		assert.Equal(t, now, c.CreatedAt)
	})

	t.Run("invalid patch leaves center untouched", func(t *testing.T) {
		before := *c
		err := c.Apply(UpdateCenterRequest{Name: ptr(""), ToleranceMeters: ptr(5)}, later.Add(time.Hour))
		require.Error(t, err)
		assert.Equal(t, before.Name, c.Name)
		assert.Equal(t, before.ToleranceMeters, c.ToleranceMeters)
		assert.Equal(t, before.UpdatedAt, c.UpdatedAt)
	})
}

func TestCenterDeactivate(t *testing.T) {
	c, err := NewCenter(id.CenterID(uuid.New()), validCreate(), now)
	require.NoError(t, err)

	require.NoError(t, c.Deactivate(now.Add(time.Minute)))
	assert.False(t, c.Active)

	err = c.Deactivate(now.Add(2 * time.Minute))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestNormalizeServices(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeServices(nil))
	assert.Equal(t, []string{"Guias", "Mapas"}, NormalizeServices([]string{"Guias", " guias", "Mapas", "   "}))
}
