package catalog

import "github.com/sikbang/recipe-harvester/internal/crawler"

// Enumerate expands the full cross-product of the four axes into work units.
// Every combination is included, even ones expected to yield zero results.
// Order follows each axis's insertion order, dish type varying slowest and
// method fastest; the sequence is regenerated fresh on each call.
func Enumerate(axes [4]Axis) []crawler.WorkUnit {
	dishes, situations, ingredients, methods := axes[0], axes[1], axes[2], axes[3]

	units := make([]crawler.WorkUnit, 0,
		len(dishes.Values)*len(situations.Values)*len(ingredients.Values)*len(methods.Values))
	for _, dish := range dishes.Values {
		for _, situation := range situations.Values {
			for _, ingredient := range ingredients.Values {
				for _, method := range methods.Values {
					units = append(units, crawler.WorkUnit{
						DishType:   dish,
						Situation:  situation,
						Ingredient: ingredient,
						Method:     method,
					})
				}
			}
		}
	}
	return units
}
