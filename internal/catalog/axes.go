// Package catalog holds the category filter axes and enumerates the work
// units driving a run.
package catalog

import "github.com/sikbang/recipe-harvester/internal/crawler"

// Axis is one classification dimension: a fixed, ordered label-to-code
// mapping. Order is contractual; it determines enumeration order.
type Axis struct {
	Name   string
	Values []crawler.AxisValue
}

// The four axes of the recipe site, loaded once and immutable for the run.
// Codes are the site's category query parameters (cat1..cat4).

// DishTypes is the cat4 axis.
var DishTypes = Axis{Name: "dish_type", Values: []crawler.AxisValue{
	{Label: "밥/죽/떡", Code: "52"},
	{Label: "면/만두", Code: "53"},
	{Label: "국/탕", Code: "54"},
	{Label: "찌개", Code: "55"},
	{Label: "메인반찬", Code: "56"},
	{Label: "양념/잼/소스", Code: "58"},
	{Label: "차/음료/술", Code: "59"},
	{Label: "디저트", Code: "60"},
	{Label: "퓨전", Code: "61"},
	{Label: "밑반찬", Code: "63"},
	{Label: "샐러드", Code: "64"},
	{Label: "양식", Code: "65"},
	{Label: "빵", Code: "66"},
	{Label: "스프", Code: "68"},
	{Label: "과자", Code: "69"},
}}

// Situations is the cat2 axis.
var Situations = Axis{Name: "situation", Values: []crawler.AxisValue{
	{Label: "일상", Code: "12"},
	{Label: "손님접대", Code: "13"},
	{Label: "도시락", Code: "15"},
	{Label: "간식", Code: "17"},
	{Label: "초스피드", Code: "18"},
	{Label: "술안주", Code: "19"},
	{Label: "다이어트", Code: "21"},
	{Label: "영양식", Code: "43"},
	{Label: "명절", Code: "44"},
	{Label: "야식", Code: "45"},
}}

// Ingredients is the cat3 axis.
var Ingredients = Axis{Name: "ingredient", Values: []crawler.AxisValue{
	{Label: "육류", Code: "23"},
	{Label: "해물류", Code: "24"},
	{Label: "건어물류", Code: "25"},
	{Label: "곡류", Code: "26"},
	{Label: "채소류", Code: "28"},
	{Label: "버섯류", Code: "31"},
	{Label: "밀가루", Code: "32"},
	{Label: "쌀", Code: "47"},
	{Label: "과일류", Code: "48"},
	{Label: "소고기", Code: "70"},
	{Label: "돼지고기", Code: "71"},
	{Label: "닭고기", Code: "72"},
	{Label: "달걀/유제품", Code: "50"},
}}

// Methods is the cat1 axis.
var Methods = Axis{Name: "method", Values: []crawler.AxisValue{
	{Label: "끓이기", Code: "1"},
	{Label: "볶음", Code: "6"},
	{Label: "부침", Code: "7"},
	{Label: "찜", Code: "8"},
	{Label: "튀김", Code: "9"},
	{Label: "절임", Code: "10"},
	{Label: "조림", Code: "36"},
	{Label: "회", Code: "37"},
	{Label: "삶기", Code: "38"},
	{Label: "무침", Code: "41"},
	{Label: "비빔", Code: "42"},
	{Label: "굽기", Code: "67"},
}}

// Default returns the built-in axes in cross-product nesting order
// (dish type outermost, method innermost).
func Default() [4]Axis {
	return [4]Axis{DishTypes, Situations, Ingredients, Methods}
}
