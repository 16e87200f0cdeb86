package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Phone    string `json:"phone" validate:"required,ci_phone"`
	Duration int    `json:"duration" validate:"omitempty,slot_duration"`
}

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, Install(v, []int{15, 30, 45, 60}))
	return v
}

func TestInstall_CustomTags(t *testing.T) {
	v := newValidate(t)

	assert.NoError(t, v.Struct(sample{Phone: "0701020304", Duration: 30}))
	assert.NoError(t, v.Struct(sample{Phone: "+225 07 01 02 03 04"}))

	err := v.Struct(sample{Phone: "+33612345678", Duration: 20})
	require.Error(t, err)

	fields := Describe(err)
	require.Len(t, fields, 2)
	assert.Equal(t, "phone", fields[0].Field)
	assert.Equal(t, "ci_phone", fields[0].Rule)
	assert.Equal(t, "duration", fields[1].Field)
	assert.Equal(t, "slot_duration", fields[1].Rule)
}

type optionalDuration struct {
	Duration *int `json:"duration" validate:"omitempty,slot_duration"`
}

func TestInstall_SlotDurationThroughPointer(t *testing.T) {
	v := newValidate(t)
	thirty, twenty := 30, 20

	assert.NoError(t, v.Struct(optionalDuration{}))
	assert.NoError(t, v.Struct(optionalDuration{Duration: &thirty}))

	err := v.Struct(optionalDuration{Duration: &twenty})
	require.Error(t, err)
	fields := Describe(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "duration", fields[0].Field)
	assert.Equal(t, "slot_duration", fields[0].Rule)
}

func TestDescribe_NonValidationError(t *testing.T) {
	assert.Nil(t, Describe(errors.New("unexpected EOF")))
}
