package projections

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"academy/internal/application/listutil"
	"academy/internal/domain/student"
)

// StudentListQuery carries the list parameters parsed from the request.
type StudentListQuery struct {
	Params listutil.ListParams
}

// StudentListDeps holds dependencies for the student list projection.
type StudentListDeps struct {
	StudentStore RowStudentStore
}

// StudentListRow is one roster entry with a flattened class summary.
type StudentListRow struct {
	ID                  string
	Name                string
	School              string
	Grade               string
	Classes             []string
	DefaultRateItemName string
}

// StudentListResult carries one page of the roster.
type StudentListResult struct {
	Rows     []StudentListRow
	PageInfo listutil.PageInfo
}

// QueryStudentList returns a filtered, sorted, paginated roster page.
// PRE: query params are already validated by listutil parsing
// POST: PageInfo.Total counts all matches, Rows holds only the current page
func QueryStudentList(ctx context.Context, query StudentListQuery, deps StudentListDeps) (StudentListResult, error) {
	students, err := deps.StudentStore.List(ctx)
	if err != nil {
		return StudentListResult{}, err
	}

	p := query.Params
	matched := make([]student.Student, 0, len(students))
	for _, st := range students {
		if !matchesStudentFilters(st, p.FilterParams) {
			continue
		}
		matched = append(matched, st)
	}

	sortStudents(matched, p.SortParams)

	info := listutil.NewPageInfo(p.Page, p.PerPage, len(matched))
	start := info.Offset()
	end := start + info.PerPage
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	rows := make([]StudentListRow, 0, end-start)
	for _, st := range matched[start:end] {
		classes := make([]string, 0, len(st.Enrollments))
		for _, e := range st.Enrollments {
			classes = append(classes, e.ClassName)
		}
		rows = append(rows, StudentListRow{
			ID:                  st.ID,
			Name:                st.Name,
			School:              st.School,
			Grade:               st.Grade,
			Classes:             classes,
			DefaultRateItemName: st.DefaultRateItemName,
		})
	}

	return StudentListResult{Rows: rows, PageInfo: info}, nil
}

func matchesStudentFilters(st student.Student, fp listutil.FilterParams) bool {
	if fp.Search != "" && !strings.Contains(strings.ToLower(st.Name), strings.ToLower(fp.Search)) {
		return false
	}
	if school, ok := fp.Filters["school"]; ok && st.School != school {
		return false
	}
	if grade, ok := fp.Filters["grade"]; ok && st.Grade != grade {
		return false
	}
	if class, ok := fp.Filters["class"]; ok {
		found := false
		for _, e := range st.Enrollments {
			if e.ClassName == class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sortStudents orders by the selected column with the name as tiebreak.
// Comparisons use Korean collation so Hangul names sort in dictionary order.
func sortStudents(students []student.Student, sp listutil.SortParams) {
	coll := collate.New(language.Korean)
	less := func(a, b student.Student) bool {
		var pa, pb string
		switch sp.Sort {
		case "school":
			pa, pb = a.School, b.School
		case "grade":
			pa, pb = a.Grade, b.Grade
		}
		if pa != pb {
			return coll.CompareString(pa, pb) < 0
		}
		return coll.CompareString(a.Name, b.Name) < 0
	}
	sort.SliceStable(students, func(i, j int) bool {
		if sp.Dir == "desc" {
			return less(students[j], students[i])
		}
		return less(students[i], students[j])
	})
}
