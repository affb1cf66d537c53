package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTea() Tea {
	return Tea{
		ID:       "longjing",
		Name:     "Longjing",
		Type:     TypeGreen,
		Province: "Zhejiang",
		Lat:      30.23,
		Lng:      120.12,
	}
}

func TestTeaValidate(t *testing.T) {
	require.NoError(t, validTea().Validate())
}

func TestTeaValidateMissingName(t *testing.T) {
	tea := validTea()
	tea.Name = ""

	err := tea.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTeaValidateUnknownType(t *testing.T) {
	tea := validTea()
	tea.Type = "herbal"

	err := tea.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTeaValidateCoordinatesOutOfRange(t *testing.T) {
	tea := validTea()
	tea.Lat = 91

	assert.ErrorIs(t, tea.Validate(), ErrValidation)

	tea = validTea()
	tea.Lng = -181

	assert.ErrorIs(t, tea.Validate(), ErrValidation)
}

func TestTeaTypeValid(t *testing.T) {
	for _, typ := range []TeaType{TypeGreen, TypeBlack, TypeOolong, TypeWhite, TypePuerh, TypeYellow} {
		assert.True(t, typ.Valid(), string(typ))
	}
	assert.False(t, TeaType("matcha latte").Valid())
	assert.False(t, TeaType("").Valid())
}
