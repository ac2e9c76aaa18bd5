package catalog

import "github.com/itzrealashwin/AnnaRaksha/pkg/types"

// classRanges holds one produce type's band per environment class.
type classRanges struct {
	cold, dry, general, openAir types.SafeRange
}

func (c classRanges) entries() map[types.EnvironmentClass]types.SafeRange {
	return map[types.EnvironmentClass]types.SafeRange{
		types.EnvCold:    c.cold,
		types.EnvDry:     c.dry,
		types.EnvGeneral: c.general,
		types.EnvOpenAir: c.openAir,
	}
}

func r(tMin, tMax, hMin, hMax float64) types.SafeRange {
	return types.SafeRange{
		Temp:     types.Band{Min: tMin, Max: tMax},
		Humidity: types.Band{Min: hMin, Max: hMax},
	}
}

// builtin is the default table: temperature in °C, relative humidity in %.
// Chill-sensitive produce (banana, ginger, sweet potato, cucumber) has a raised
// cold-storage floor.
var builtin = map[string]classRanges{
	// Root and bulb vegetables.
	"onion":        {cold: r(0, 5, 65, 75), dry: r(10, 25, 55, 65), general: r(15, 35, 50, 70), openAir: r(15, 40, 40, 75)},
	"potato":       {cold: r(4, 8, 90, 95), dry: r(10, 20, 80, 90), general: r(15, 30, 70, 85), openAir: r(15, 35, 60, 85)},
	"garlic":       {cold: r(-1, 0, 60, 70), dry: r(10, 20, 55, 65), general: r(15, 30, 50, 65), openAir: r(15, 35, 40, 65)},
	"carrot":       {cold: r(0, 2, 95, 100), dry: r(10, 15, 80, 90), general: r(10, 25, 70, 85), openAir: r(15, 30, 60, 80)},
	"sweet_potato": {cold: r(13, 15, 85, 90), dry: r(15, 25, 70, 80), general: r(18, 30, 60, 80), openAir: r(20, 35, 60, 85)},
	"ginger":       {cold: r(12, 14, 85, 90), dry: r(15, 25, 70, 80), general: r(18, 30, 65, 80), openAir: r(20, 35, 60, 85)},
	"radish":       {cold: r(0, 2, 95, 100), dry: r(10, 18, 80, 90), general: r(15, 25, 70, 85), openAir: r(15, 30, 60, 80)},

	// Fruits.
	"apple":      {cold: r(0, 4, 90, 95), dry: r(10, 20, 80, 85), general: r(15, 25, 70, 85), openAir: r(15, 30, 60, 85)},
	"banana":     {cold: r(13, 15, 85, 90), dry: r(15, 20, 70, 80), general: r(18, 28, 60, 80), openAir: r(20, 35, 60, 85)},
	"mango":      {cold: r(10, 13, 85, 90), dry: r(15, 25, 70, 80), general: r(20, 30, 60, 80), openAir: r(25, 35, 60, 85)},
	"orange":     {cold: r(3, 8, 85, 90), dry: r(10, 20, 75, 85), general: r(15, 28, 65, 80), openAir: r(15, 35, 60, 85)},
	"lemon":      {cold: r(10, 13, 85, 90), dry: r(15, 20, 75, 85), general: r(18, 28, 65, 80), openAir: r(18, 35, 60, 85)},
	"grape":      {cold: r(-1, 0, 90, 95), dry: r(10, 18, 75, 85), general: r(15, 25, 65, 80), openAir: r(15, 30, 60, 80)},
	"strawberry": {cold: r(0, 2, 90, 95), dry: r(10, 15, 80, 90), general: r(15, 22, 70, 85), openAir: r(15, 28, 60, 80)},
	"watermelon": {cold: r(10, 15, 85, 90), dry: r(15, 25, 70, 80), general: r(20, 30, 60, 80), openAir: r(20, 35, 60, 85)},
	"pineapple":  {cold: r(10, 13, 85, 90), dry: r(15, 25, 70, 80), general: r(20, 30, 60, 80), openAir: r(20, 35, 60, 85)},
	"avocado":    {cold: r(5, 12, 85, 90), dry: r(15, 22, 70, 80), general: r(18, 28, 60, 80), openAir: r(18, 32, 60, 80)},
	"papaya":     {cold: r(10, 13, 85, 90), dry: r(15, 25, 70, 80), general: r(20, 30, 60, 80), openAir: r(22, 35, 60, 85)},

	// Leafy greens and crucifers wilt quickly outside cold storage.
	"cabbage":  {cold: r(0, 2, 95, 100), dry: r(10, 15, 80, 90), general: r(10, 22, 70, 85), openAir: r(15, 28, 60, 80)},
	"lettuce":  {cold: r(0, 2, 95, 100), dry: r(10, 15, 85, 95), general: r(15, 22, 70, 85), openAir: r(15, 25, 60, 80)},
	"spinach":  {cold: r(0, 2, 95, 100), dry: r(10, 15, 85, 95), general: r(15, 20, 70, 85), openAir: r(15, 25, 60, 80)},
	"broccoli": {cold: r(0, 2, 95, 100), dry: r(10, 15, 85, 90), general: r(15, 22, 70, 85), openAir: r(15, 28, 60, 80)},

	// Fruiting vegetables.
	"tomato":      {cold: r(10, 15, 85, 90), dry: r(15, 25, 60, 70), general: r(18, 30, 60, 80), openAir: r(20, 35, 60, 85)},
	"bell_pepper": {cold: r(7, 10, 90, 95), dry: r(12, 20, 75, 85), general: r(15, 28, 65, 80), openAir: r(18, 32, 60, 80)},
	"cucumber":    {cold: r(10, 12, 90, 95), dry: r(15, 22, 75, 85), general: r(18, 28, 65, 80), openAir: r(20, 35, 60, 80)},
	"eggplant":    {cold: r(10, 12, 90, 95), dry: r(15, 22, 75, 85), general: r(18, 28, 65, 80), openAir: r(20, 35, 60, 80)},
	"pumpkin":     {cold: r(10, 13, 50, 70), dry: r(15, 25, 50, 65), general: r(18, 30, 50, 70), openAir: r(20, 35, 50, 75)},
	"zucchini":    {cold: r(5, 10, 95, 100), dry: r(12, 18, 80, 90), general: r(15, 25, 70, 85), openAir: r(18, 30, 60, 80)},
}
