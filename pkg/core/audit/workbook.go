package audit

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// auditWorkbook re-opens the rendered workbook and verifies every required
// sheet made it to disk. An unreadable file is an error; a missing sheet
// only degrades the report and stays a warning.
func (a *Auditor) auditWorkbook(path string, requiredSheets []string, r *Results) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		r.add(SeverityError, CategoryTechnical, "workbook", fmt.Sprintf(
			"cannot open workbook %s: %v", path, err))
		return
	}
	defer f.Close()

	present := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		present[name] = true
	}
	for _, name := range requiredSheets {
		if !present[name] {
			r.add(SeverityWarning, CategoryExcel, "required_sheets", fmt.Sprintf(
				"workbook is missing sheet %q", name))
		}
	}
}
