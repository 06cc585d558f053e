package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studentpakistan/backend/core/reference"
)

func Test_boardsApi(t *testing.T) {
	catalog := reference.Default()
	fbise, err := catalog.Board("fbise")
	require.NoError(t, err)
	invalidType := marchallObj(t, httpErr{Error: "Invalid education type"})

	tests := []httpTest{
		{name: "all", path: "/api/boards/all", wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{"boards": catalog.Boards("")})},
		{
			name: "by type", path: "/api/boards/type/O_LEVEL",
			wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{"boards": catalog.Boards(reference.OLevel)}),
		},
		{name: "by invalid type", path: "/api/boards/type/phd", wantCode: http.StatusBadRequest, wantData: invalidType},
		{
			name: "by province", path: "/api/boards/province/sindh",
			wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{"boards": catalog.BoardsByProvince("Sindh")}),
		},
		{name: "by unknown province", path: "/api/boards/province/mars", wantCode: http.StatusOK, wantData: []byte(`{"boards":[]}`)},
		{name: "board", path: "/api/boards/board/fbise", wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{"board": fbise})},
		{
			name: "unknown board", path: "/api/boards/board/nope",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "board not found"}),
		},
		{
			name: "subject groups", path: "/api/boards/subject-groups/matric",
			wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{"subjectGroups": catalog.SubjectGroups(reference.Matric)}),
		},
		{
			name: "grade levels", path: "/api/boards/grade-levels/o_level",
			wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{"gradeLevels": catalog.GradeLevels(reference.OLevel)}),
		},
		{name: "grade levels (invalid type)", path: "/api/boards/grade-levels/both", wantCode: http.StatusBadRequest, wantData: invalidType},
		{
			name: "subjects", path: "/api/boards/subjects/matric",
			wantCode: http.StatusOK, wantData: marchallObj(t, map[string]interface{}{"subjects": catalog.SubjectsByType(reference.Matric)}),
		},
	}
	runHTTPTests(t, tests)
}
