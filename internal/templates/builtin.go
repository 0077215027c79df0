package templates

const DefaultID = "standard"

var (
	fullName = FieldDescriptor{Key: "full_name", Label: "Full Name", Icon: "👤"}
	dob      = FieldDescriptor{Key: "dob", Label: "Date of Birth", Icon: "🎂"}
	address  = FieldDescriptor{Key: "address", Label: "Address", Icon: "🏠", FullWidth: true}
	aadhaar  = FieldDescriptor{Key: "aadhaar", Label: "Aadhaar Number", Icon: "🆔"}
	pan      = FieldDescriptor{Key: "pan", Label: "PAN Number", Icon: "💳"}
	phone    = FieldDescriptor{Key: "phone", Label: "Phone Number", Icon: "📞"}
)

// Builtin returns the templates shipped with the application.
func Builtin() []TemplateDescriptor {
	return []TemplateDescriptor{
		{
			ID:     "standard",
			Name:   "Standard Form",
			Fields: []FieldDescriptor{fullName, dob, address, aadhaar, pan, phone},
		},
		{
			ID:     "aadhaar",
			Name:   "Aadhaar Card",
			Fields: []FieldDescriptor{fullName, dob, address, aadhaar},
		},
		{
			ID:     "pan",
			Name:   "PAN Card",
			Fields: []FieldDescriptor{fullName, dob, address, pan, phone},
		},
	}
}

// NewBuiltinRegistry builds the registry of built-in templates with
// "standard" as the default.
func NewBuiltinRegistry() *Registry {
	r, err := NewRegistry(DefaultID, Builtin()...)
	if err != nil {
		panic("templates: invalid built-in templates: " + err.Error())
	}
	return r
}
