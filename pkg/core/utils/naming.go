package utils

import "strings"

// SafeTicker makes a ticker usable as a file name. Exchange-qualified
// symbols like UMG.AS and indexes like ^TNX carry punctuation.
func SafeTicker(ticker string) string {
	r := strings.NewReplacer(".", "_", "^", "", "/", "_")
	return r.Replace(strings.ToUpper(ticker))
}
