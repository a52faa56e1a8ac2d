package helper

import (
	"fmt"
	"regexp"
	"strings"

	om "github.com/cevaris/ordered_map"
	"github.com/relloyd/co2pipe/logger"
)

// StringSliceToOrderedMap builds an ordered map whose keys and values are both
// the supplied strings in slice order.
func StringSliceToOrderedMap(s []string) *om.OrderedMap {
	retval := om.NewOrderedMap()
	for _, v := range s {
		retval.Set(v, v)
	}
	return retval
}

// OrderedMapValuesToStringSlice builds a list of values found in ordered map 'om' supplied as input.
// This function modifies the supplied list 'l' and 'idx' by reference.
func OrderedMapValuesToStringSlice(log logger.Logger, om *om.OrderedMap, l *[]string, idx *int) {
	iter := om.IterFunc()
	if iter == nil {
		log.Panic("Failed to get iterFunc in OrderedMapValuesToStringSlice()")
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		(*l)[*idx] = kv.Value.(string)
		*idx++
	}
}

// GetTrueFalseStringAsBool trims spaces from s and checks if it can regexp (case insensitive) match "true".
// It returns true if there's a match else false.
func GetTrueFalseStringAsBool(s string) bool {
	re := regexp.MustCompile("(?i)true")
	return re.MatchString(strings.TrimSpace(s))
}

// GenerateStringOfColsEqualsCols gets a string "a.col1 = b.col1, a.col2 = b.col2" using the colList supplied
// and where the comma can be whatever separator you pass in.
func GenerateStringOfColsEqualsCols(colList []string, srcAlias string, tgtAlias string, separator string) string {
	return strings.Join(GenerateSliceOfColsEqualCols(colList, srcAlias, tgtAlias), separator)
}

func GenerateSliceOfColsEqualCols(colList []string, srcAlias string, tgtAlias string) []string {
	retval := make([]string, len(colList))
	for idx, col := range colList {
		retval[idx] = fmt.Sprintf("%s.%s = %s.%s", srcAlias, col, tgtAlias, col)
	}
	return retval
}

func StringsToCsv(s []string) string {
	return strings.Join(s, ",")
}
