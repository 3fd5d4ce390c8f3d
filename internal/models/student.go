package models

// FieldKind tells whether a student attribute is a category label or a bounded integer
type FieldKind int

const (
	FieldCategorical FieldKind = iota
	FieldInteger
)

// FieldSpec declares the domain of one StudentRecord attribute.
type FieldSpec struct {
	Name        string
	Kind        FieldKind
	Allowed     []string // nil means the vocabulary is owned by the fitted encoder
	Min         int
	Max         int
	Unbounded   bool // no upper limit (absences)
	Description string
}

var yesNo = []string{"yes", "no"}

// StudentSchema lists every attribute a prediction request must carry, in the
// column order of the original dataset.
var StudentSchema = []FieldSpec{
	{Name: "school", Kind: FieldCategorical, Allowed: []string{"GP", "MS"}, Description: "Student's school (GP or MS)"},
	{Name: "sex", Kind: FieldCategorical, Allowed: []string{"M", "F"}, Description: "Student's gender (M or F)"},
	{Name: "age", Kind: FieldInteger, Min: 15, Max: 22, Description: "Student's age (15-22)"},
	{Name: "address", Kind: FieldCategorical, Allowed: []string{"U", "R"}, Description: "Home address type (U=Urban, R=Rural)"},
	{Name: "famsize", Kind: FieldCategorical, Description: "Family size (LE3=<=3, GT3=>3)"},
	{Name: "Pstatus", Kind: FieldCategorical, Description: "Parent cohabitation status (T=Together, A=Apart)"},
	{Name: "Medu", Kind: FieldInteger, Min: 0, Max: 4, Description: "Mother's education (0-4)"},
	{Name: "Fedu", Kind: FieldInteger, Min: 0, Max: 4, Description: "Father's education (0-4)"},
	{Name: "Mjob", Kind: FieldCategorical, Description: "Mother's job"},
	{Name: "Fjob", Kind: FieldCategorical, Description: "Father's job"},
	{Name: "reason", Kind: FieldCategorical, Description: "Reason to choose school"},
	{Name: "guardian", Kind: FieldCategorical, Description: "Student's guardian"},
	{Name: "traveltime", Kind: FieldInteger, Min: 1, Max: 4, Description: "Travel time (1-4)"},
	{Name: "studytime", Kind: FieldInteger, Min: 1, Max: 4, Description: "Weekly study time (1-4)"},
	{Name: "failures", Kind: FieldInteger, Min: 0, Max: 4, Description: "Past class failures (0-4)"},
	{Name: "schoolsup", Kind: FieldCategorical, Allowed: yesNo, Description: "Extra educational support (yes/no)"},
	{Name: "famsup", Kind: FieldCategorical, Allowed: yesNo, Description: "Family educational support (yes/no)"},
	{Name: "paid", Kind: FieldCategorical, Allowed: yesNo, Description: "Extra paid classes (yes/no)"},
	{Name: "activities", Kind: FieldCategorical, Allowed: yesNo, Description: "Extra-curricular activities (yes/no)"},
	{Name: "nursery", Kind: FieldCategorical, Allowed: yesNo, Description: "Attended nursery school (yes/no)"},
	{Name: "higher", Kind: FieldCategorical, Allowed: yesNo, Description: "Wants higher education (yes/no)"},
	{Name: "internet", Kind: FieldCategorical, Allowed: yesNo, Description: "Internet access at home (yes/no)"},
	{Name: "romantic", Kind: FieldCategorical, Allowed: yesNo, Description: "In romantic relationship (yes/no)"},
	{Name: "famrel", Kind: FieldInteger, Min: 1, Max: 5, Description: "Family relationship quality (1-5)"},
	{Name: "freetime", Kind: FieldInteger, Min: 1, Max: 5, Description: "Free time after school (1-5)"},
	{Name: "goout", Kind: FieldInteger, Min: 1, Max: 5, Description: "Going out with friends (1-5)"},
	{Name: "Dalc", Kind: FieldInteger, Min: 1, Max: 5, Description: "Workday alcohol consumption (1-5)"},
	{Name: "Walc", Kind: FieldInteger, Min: 1, Max: 5, Description: "Weekend alcohol consumption (1-5)"},
	{Name: "health", Kind: FieldInteger, Min: 1, Max: 5, Description: "Current health status (1-5)"},
	{Name: "absences", Kind: FieldInteger, Min: 0, Unbounded: true, Description: "Number of school absences"},
	{Name: "G1", Kind: FieldInteger, Min: 0, Max: 20, Description: "First period grade (0-20)"},
	{Name: "G2", Kind: FieldInteger, Min: 0, Max: 20, Description: "Second period grade (0-20)"},
}

// StudentRecord is one validated student. Build it through the prediction
// validator; a zero StudentRecord is not meaningful.
type StudentRecord struct {
	School     string `json:"school"`
	Sex        string `json:"sex"`
	Age        int    `json:"age"`
	Address    string `json:"address"`
	Famsize    string `json:"famsize"`
	Pstatus    string `json:"Pstatus"`
	Medu       int    `json:"Medu"`
	Fedu       int    `json:"Fedu"`
	Mjob       string `json:"Mjob"`
	Fjob       string `json:"Fjob"`
	Reason     string `json:"reason"`
	Guardian   string `json:"guardian"`
	Traveltime int    `json:"traveltime"`
	Studytime  int    `json:"studytime"`
	Failures   int    `json:"failures"`
	Schoolsup  string `json:"schoolsup"`
	Famsup     string `json:"famsup"`
	Paid       string `json:"paid"`
	Activities string `json:"activities"`
	Nursery    string `json:"nursery"`
	Higher     string `json:"higher"`
	Internet   string `json:"internet"`
	Romantic   string `json:"romantic"`
	Famrel     int    `json:"famrel"`
	Freetime   int    `json:"freetime"`
	Goout      int    `json:"goout"`
	Dalc       int    `json:"Dalc"`
	Walc       int    `json:"Walc"`
	Health     int    `json:"health"`
	Absences   int    `json:"absences"`
	G1         int    `json:"G1"`
	G2         int    `json:"G2"`
}

// FeatureValue is a single named attribute read from a StudentRecord.
type FeatureValue struct {
	Categorical bool
	Text        string
	Number      int
}

var textFields = map[string]func(*StudentRecord) *string{
	"school":     func(r *StudentRecord) *string { return &r.School },
	"sex":        func(r *StudentRecord) *string { return &r.Sex },
	"address":    func(r *StudentRecord) *string { return &r.Address },
	"famsize":    func(r *StudentRecord) *string { return &r.Famsize },
	"Pstatus":    func(r *StudentRecord) *string { return &r.Pstatus },
	"Mjob":       func(r *StudentRecord) *string { return &r.Mjob },
	"Fjob":       func(r *StudentRecord) *string { return &r.Fjob },
	"reason":     func(r *StudentRecord) *string { return &r.Reason },
	"guardian":   func(r *StudentRecord) *string { return &r.Guardian },
	"schoolsup":  func(r *StudentRecord) *string { return &r.Schoolsup },
	"famsup":     func(r *StudentRecord) *string { return &r.Famsup },
	"paid":       func(r *StudentRecord) *string { return &r.Paid },
	"activities": func(r *StudentRecord) *string { return &r.Activities },
	"nursery":    func(r *StudentRecord) *string { return &r.Nursery },
	"higher":     func(r *StudentRecord) *string { return &r.Higher },
	"internet":   func(r *StudentRecord) *string { return &r.Internet },
	"romantic":   func(r *StudentRecord) *string { return &r.Romantic },
}

var numberFields = map[string]func(*StudentRecord) *int{
	"age":        func(r *StudentRecord) *int { return &r.Age },
	"Medu":       func(r *StudentRecord) *int { return &r.Medu },
	"Fedu":       func(r *StudentRecord) *int { return &r.Fedu },
	"traveltime": func(r *StudentRecord) *int { return &r.Traveltime },
	"studytime":  func(r *StudentRecord) *int { return &r.Studytime },
	"failures":   func(r *StudentRecord) *int { return &r.Failures },
	"famrel":     func(r *StudentRecord) *int { return &r.Famrel },
	"freetime":   func(r *StudentRecord) *int { return &r.Freetime },
	"goout":      func(r *StudentRecord) *int { return &r.Goout },
	"Dalc":       func(r *StudentRecord) *int { return &r.Dalc },
	"Walc":       func(r *StudentRecord) *int { return &r.Walc },
	"health":     func(r *StudentRecord) *int { return &r.Health },
	"absences":   func(r *StudentRecord) *int { return &r.Absences },
	"G1":         func(r *StudentRecord) *int { return &r.G1 },
	"G2":         func(r *StudentRecord) *int { return &r.G2 },
}

// Feature looks an attribute up by its column name.
func (r StudentRecord) Feature(name string) (FeatureValue, bool) {
	if get, ok := textFields[name]; ok {
		return FeatureValue{Categorical: true, Text: *get(&r)}, true
	}
	if get, ok := numberFields[name]; ok {
		return FeatureValue{Number: *get(&r)}, true
	}
	return FeatureValue{}, false
}

// SetText assigns a categorical attribute. It reports false for unknown names.
func (r *StudentRecord) SetText(name, value string) bool {
	get, ok := textFields[name]
	if ok {
		*get(r) = value
	}
	return ok
}

// SetNumber assigns an integer attribute. It reports false for unknown names.
func (r *StudentRecord) SetNumber(name string, value int) bool {
	get, ok := numberFields[name]
	if ok {
		*get(r) = value
	}
	return ok
}
