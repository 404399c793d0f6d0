package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderBasics(t *testing.T) {
	err := Newf("artifact %s not found", "scaler.json").
		Component("screamdet").
		Category(CategoryModelLoad).
		Priority(PriorityCritical).
		Context("path", "/etc/scaler.json").
		Build()

	assert.Equal(t, "artifact scaler.json not found", err.Error())
	assert.Equal(t, "screamdet", err.GetComponent())
	assert.Equal(t, string(CategoryModelLoad), err.GetCategory())
	assert.Equal(t, PriorityCritical, err.GetPriority())
	assert.Equal(t, "/etc/scaler.json", err.GetContext()["path"])
}

func TestBuilderDefaultsToGenericCategory(t *testing.T) {
	err := Newf("something happened").Build()
	assert.Equal(t, CategoryGeneric, CategoryOf(err))
	assert.Equal(t, ComponentUnknown, err.GetComponent())
}

func TestBuilderWrapsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := New(cause).Component("datastore").Category(CategoryDatabase).Build()

	assert.True(t, Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestHasCategoryThroughWrapping(t *testing.T) {
	inner := Newf("gateway timeout").
		Component("alert").
		Category(CategoryNotifyTransient).
		Build()
	wrapped := fmt.Errorf("send failed: %w", inner)

	assert.True(t, HasCategory(wrapped, CategoryNotifyTransient))
	assert.False(t, HasCategory(wrapped, CategoryNotifyPermanent))
	assert.Equal(t, CategoryNotifyTransient, CategoryOf(wrapped))
}

func TestHasCategoryOnPlainError(t *testing.T) {
	err := stderrors.New("plain")
	assert.False(t, HasCategory(err, CategoryDatabase))
	assert.Equal(t, CategoryGeneric, CategoryOf(err))
}

func TestIsMatchesByCategory(t *testing.T) {
	a := Newf("first").Category(CategoryTimeout).Build()
	b := Newf("second").Category(CategoryTimeout).Build()
	c := Newf("third").Category(CategoryNetwork).Build()

	assert.True(t, Is(a, b), "enhanced errors match on category")
	assert.False(t, Is(a, c))
}

func TestPriorityValidation(t *testing.T) {
	err := Newf("x").Priority("bogus").Build()
	assert.Equal(t, PriorityMedium, err.GetPriority(), "unknown priorities degrade to medium")

	err = Newf("x").Build()
	assert.Empty(t, err.GetPriority())
}

func TestGetContextReturnsCopy(t *testing.T) {
	err := Newf("x").Context("key", "value").Build()

	ctx := err.GetContext()
	require.NotNil(t, ctx)
	ctx["key"] = "mutated"
	assert.Equal(t, "value", err.GetContext()["key"])
}
