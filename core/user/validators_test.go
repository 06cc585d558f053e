package user

import "testing"

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "too short", pwd: "Ab1$", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123$", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcd12345", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcd123$$", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Hassan.k1", want: pwdAttrSimTag},
		{name: "valid", pwd: "Sup3r$ecret!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPassword(tt.pwd, "Hassan", "hassan_k1", "hassan@test.pk"); got != tt.want {
				t.Errorf("checkPassword() = %q, want %q", got, tt.want)
			}
		})
	}
}
