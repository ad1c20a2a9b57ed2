package identity

var provinces = []string{
	"آذربایجان شرقی", "آذربایجان غربی", "اردبیل", "اصفهان", "البرز", "ایلام",
	"بوشهر", "تهران", "چهارمحال و بختیاری", "خراسان جنوبی", "خراسان رضوی", "خراسان شمالی",
	"خوزستان", "زنجان", "سمنان", "سیستان و بلوچستان", "فارس", "قزوین",
	"قم", "کردستان", "کرمان", "کرمانشاه", "کهگیلویه و بویراحمد", "گلستان",
	"گیلان", "لرستان", "مازندران", "مرکزی", "هرمزگان", "همدان",
	"یزد",
}

var provinceSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(provinces))
	for _, p := range provinces {
		m[p] = struct{}{}
	}
	return m
}()

// Provinces returns a copy of the 31 accepted province names.
func Provinces() []string {
	out := make([]string, len(provinces))
	copy(out, provinces)
	return out
}

// ValidProvince is an exact match against Provinces; callers normalize first.
func ValidProvince(name string) bool {
	_, ok := provinceSet[name]
	return ok
}
