package render

// Settings is the caller-supplied rendering configuration. Toggle
// fields are pointers so "absent" and "explicitly false" stay
// distinguishable in the request body; zero font sizes mean "default".
type Settings struct {
	ShowKey       *bool `json:"show_key,omitempty"`
	ShowUsernames *bool `json:"show_usernames,omitempty"`
	ShowDirnames  *bool `json:"show_dirnames,omitempty"`

	DirFontSize  int `json:"dir_font_size,omitempty"`
	FileFontSize int `json:"file_font_size,omitempty"`
	UserFontSize int `json:"user_font_size,omitempty"`
}

// Resolved is a fully-defaulted settings record, safe to hand to the
// pipeline. It is never mutated after job submission.
type Resolved struct {
	ShowKey       bool
	ShowUsernames bool
	ShowDirnames  bool

	DirFontSize  int
	FileFontSize int
	UserFontSize int
}

// Render defaults. The legend and labels are on unless the caller turns
// them off; font sizes follow the renderer's comfortable on-screen
// density at 1920x1200.
const (
	DefaultDirFontSize  = 12
	DefaultFileFontSize = 10
	DefaultUserFontSize = 14
)

// DefaultSettings returns the fully-defaulted configuration used when a
// submission omits settings entirely.
func DefaultSettings() Resolved {
	return Resolved{
		ShowKey:       true,
		ShowUsernames: true,
		ShowDirnames:  true,
		DirFontSize:   DefaultDirFontSize,
		FileFontSize:  DefaultFileFontSize,
		UserFontSize:  DefaultUserFontSize,
	}
}

// Resolve merges s over the defaults. A nil receiver means "all
// defaults".
func (s *Settings) Resolve() Resolved {
	out := DefaultSettings()
	if s == nil {
		return out
	}
	if s.ShowKey != nil {
		out.ShowKey = *s.ShowKey
	}
	if s.ShowUsernames != nil {
		out.ShowUsernames = *s.ShowUsernames
	}
	if s.ShowDirnames != nil {
		out.ShowDirnames = *s.ShowDirnames
	}
	if s.DirFontSize > 0 {
		out.DirFontSize = s.DirFontSize
	}
	if s.FileFontSize > 0 {
		out.FileFontSize = s.FileFontSize
	}
	if s.UserFontSize > 0 {
		out.UserFontSize = s.UserFontSize
	}
	return out
}
