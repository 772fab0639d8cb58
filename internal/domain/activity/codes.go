package activity

// codeRange is an inclusive range of raw six-digit survey activity codes.
type codeRange struct {
	lo, hi uint32
	cat    Category
}

// rawRanges maps raw survey codes to categories. Order matters: the first
// matching range wins, which is how 100000 resolves to PersonalCare rather
// than Services.
var rawRanges = []codeRange{
	{10100, 10199, Sleeping},

	{10200, 19999, PersonalCare},
	{100000, 100000, PersonalCare},

	{20000, 29999, HouseholdChores},

	{30000, 30399, Childcare},
	{40000, 40399, Childcare},

	{30400, 39999, AdultCare},
	{40400, 49999, AdultCare},

	{50000, 59999, Work},

	{60000, 60199, Classes},
	{60200, 60299, Extracurricular},
	{60300, 60399, Homework},
	{60400, 69999, OtherEducation},

	{70000, 79999, Shopping},

	{80000, 100199, Services},
	{100304, 100304, Services},
	{100400, 109999, Services},

	{100200, 100299, CivicDuties},
	{100303, 100303, CivicDuties},
	{100399, 100399, CivicDuties},

	{110000, 119999, EatingDrinking},

	{120000, 129999, Leisure},
	{130200, 130399, Leisure},

	{130000, 130199, Exercise},
	{130400, 139999, Exercise},

	{140000, 149999, ReligiousActivities},
	{150000, 159999, Volunteering},
	{160000, 169999, Calls},
	{180000, 189999, Travel},

	{500000, 509999, MissingData},
}

// FromRawCode maps a raw survey activity code to its category. Codes outside
// every known range report false; callers decide whether to drop the record.
func FromRawCode(code uint32) (Category, bool) {
	for _, r := range rawRanges {
		if code >= r.lo && code <= r.hi {
			return r.cat, true
		}
	}
	return 0, false
}
