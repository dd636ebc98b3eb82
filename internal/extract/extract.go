// Package extract turns the raw text of a Korean real-estate registration
// certificate (등기부등본) into a fixed-shape record. Every rule is an
// independent regex over the full document text; a rule that does not match
// simply leaves its field at the default. Extraction is a pure function and
// never fails on malformed input.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DocumentTypeRegistry is the literal marker that identifies a registration
// certificate. When it is absent from the text, no other rule is evaluated
// and all dependent fields keep their defaults.
const DocumentTypeRegistry = "등기사항전부증명서"

// Record is the structured result for one document. Pointer fields marshal
// as JSON null until their rule matches, mirroring the wire contract.
type Record struct {
	Filename        string       `json:"filename"`
	PageCount       int          `json:"page_count"`
	DocumentType    *string      `json:"document_type"`
	PropertyInfo    PropertyInfo `json:"property_info"`
	OwnershipInfo   []Owner      `json:"ownership_info"`
	MortgageInfo    []Mortgage   `json:"mortgage_info"`
	TransactionInfo *Transaction `json:"transaction_info"`
}

// PropertyInfo describes the registered property itself.
type PropertyInfo struct {
	Address      *string  `json:"address"`
	UniqueNumber *string  `json:"unique_number"`
	BuildingType *string  `json:"building_type"`
	Area         []string `json:"area"`
}

// Owner is one 소유자 entry: a name and a masked resident ID
// (six digits plus the literal masking suffix, as printed).
type Owner struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Mortgage is one 근저당권 entry; Amount is the maximum claim amount
// (채권최고액) with thousands separators stripped.
type Mortgage struct {
	Amount string `json:"amount"`
}

// Transaction is the sale record: amount with separators stripped, and the
// sale date reformatted to YYYY-MM-DD when present.
type Transaction struct {
	Amount string  `json:"amount"`
	Date   *string `json:"date"`
}

// Rule patterns, in evaluation order. The date rule only runs after the
// amount rule matched; no other rule depends on another.
var (
	addressRe      = regexp.MustCompile(`\[건물\]\s*(.*?)\n`)
	uniqueNumberRe = regexp.MustCompile(`고유번호\s*(.*?)\n`)
	buildingTypeRe = regexp.MustCompile(`단독주택|아파트|연립주택|다세대주택|오피스텔|상가`)
	areaRe         = regexp.MustCompile(`\d+층\s*\d+\.?\d*㎡`)
	ownerRe        = regexp.MustCompile(`소유자\s+(\S+)\s+(\d{6}-\*+)`)
	mortgageRe     = regexp.MustCompile(`(?s)근저당권설정.*?채권최고액\s+금([\d,]+)원`)
	txAmountRe     = regexp.MustCompile(`거래가액\s*금([\d,]+)원`)
	txDateRe       = regexp.MustCompile(`(\d{4})년(\d{1,2})월(\d{1,2})일\s*매매`)
)

// Extract applies the rule table to fullText. fullText is expected to be the
// ordered concatenation of all page texts with no separator inserted, so a
// match may span a page boundary; that is accepted behavior.
func Extract(fullText, filename string, pageCount int) Record {
	rec := Record{
		Filename:      filename,
		PageCount:     pageCount,
		OwnershipInfo: []Owner{},
		MortgageInfo:  []Mortgage{},
	}

	if !strings.Contains(fullText, DocumentTypeRegistry) {
		return rec
	}
	docType := DocumentTypeRegistry
	rec.DocumentType = &docType

	if m := addressRe.FindStringSubmatch(fullText); m != nil {
		v := strings.TrimSpace(m[1])
		rec.PropertyInfo.Address = &v
	}
	if m := uniqueNumberRe.FindStringSubmatch(fullText); m != nil {
		v := strings.TrimSpace(m[1])
		rec.PropertyInfo.UniqueNumber = &v
	}
	if m := buildingTypeRe.FindString(fullText); m != "" {
		v := m
		rec.PropertyInfo.BuildingType = &v
	}
	if m := areaRe.FindAllString(fullText, -1); len(m) > 0 {
		rec.PropertyInfo.Area = m
	}
	for _, m := range ownerRe.FindAllStringSubmatch(fullText, -1) {
		rec.OwnershipInfo = append(rec.OwnershipInfo, Owner{Name: m[1], ID: m[2]})
	}
	for _, m := range mortgageRe.FindAllStringSubmatch(fullText, -1) {
		rec.MortgageInfo = append(rec.MortgageInfo, Mortgage{
			Amount: strings.ReplaceAll(m[1], ",", ""),
		})
	}
	if m := txAmountRe.FindStringSubmatch(fullText); m != nil {
		rec.TransactionInfo = &Transaction{
			Amount: strings.ReplaceAll(m[1], ",", ""),
		}
		// The sale-date rule only runs once an amount was found.
		if d := txDateRe.FindStringSubmatch(fullText); d != nil {
			date := formatSaleDate(d[1], d[2], d[3])
			rec.TransactionInfo.Date = &date
		}
	}

	return rec
}

// formatSaleDate zero-pads month and day and joins as YYYY-MM-DD. Inputs are
// guaranteed numeric by the pattern.
func formatSaleDate(year, month, day string) string {
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf("%s-%02d-%02d", year, m, d)
}
