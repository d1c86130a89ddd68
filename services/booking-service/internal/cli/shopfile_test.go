package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
)

func TestLoadShopFile(t *testing.T) {
	path := writeShop(t, testShop)

	f, err := LoadShopFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "navalha.db"), f.DBPath)
	assert.Equal(t, -180, f.Offset())

	c := f.Catalog()
	ctx := context.Background()
	settings, err := c.ShopSettings(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, availability.MustLocalTime("09:00"), settings.Window.Opens)
	assert.Equal(t, 30, settings.GranularityMinutes)

	pro, err := c.Professional(ctx, "shop-1", "pro-off")
	require.NoError(t, err)
	assert.False(t, pro.IsActive)
	pro, err = c.Professional(ctx, "shop-1", "pro-1")
	require.NoError(t, err)
	assert.True(t, pro.IsActive)
}

func TestLoadShopFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"no shop id": `
[shop]
opens = "09:00"
closes = "12:00"
`,
		"bad opens": `
[shop]
id = "s"
opens = "9h"
closes = "12:00"
`,
		"duplicate service": `
[shop]
id = "s"
opens = "09:00"
closes = "12:00"

[[services]]
id = "corte"
name = "Corte"

[[services]]
id = "corte"
name = "Corte 2"
`,
		"not toml": `shop = [`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadShopFile(writeShop(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadShopFile_DefaultOffset(t *testing.T) {
	f, err := LoadShopFile(writeShop(t, `
db_path = ":memory:"
[shop]
id = "s"
opens = "09:00"
closes = "12:00"
`))
	require.NoError(t, err)
	assert.Equal(t, availability.DefaultOffsetMinutes, f.Offset())
	assert.Equal(t, ":memory:", f.DBPath)
}
