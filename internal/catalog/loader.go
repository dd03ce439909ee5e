package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// noPromotion is the literal used by product tables for rows without a promotion.
const noPromotion = "null"

// ReadProducts parses a header-first product table: name,price,quantity,promotion.
func ReadProducts(r io.Reader) ([]Product, error) {
	records, err := readTable(r, 4)
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	out := make([]Product, 0, len(records))
	for i, rec := range records {
		line := i + 2
		price, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("products line %d: price %q: %w", line, rec[1], err)
		}
		qty, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("products line %d: quantity %q: %w", line, rec[2], err)
		}
		var promo *string
		if rec[3] != "" && rec[3] != noPromotion {
			name := rec[3]
			promo = &name
		}
		p, err := NewProduct(rec[0], price, qty, promo)
		if err != nil {
			return nil, fmt.Errorf("products line %d: %w", line, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadPromotions parses a header-first promotion table: name,buy,get,start_date,end_date.
func ReadPromotions(r io.Reader) ([]Promotion, error) {
	records, err := readTable(r, 5)
	if err != nil {
		return nil, fmt.Errorf("promotions: %w", err)
	}
	out := make([]Promotion, 0, len(records))
	for i, rec := range records {
		line := i + 2
		buy, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("promotions line %d: buy %q: %w", line, rec[1], err)
		}
		get, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("promotions line %d: get %q: %w", line, rec[2], err)
		}
		start, err := time.Parse(DateLayout, rec[3])
		if err != nil {
			return nil, fmt.Errorf("promotions line %d: start_date: %w", line, err)
		}
		end, err := time.Parse(DateLayout, rec[4])
		if err != nil {
			return nil, fmt.Errorf("promotions line %d: end_date: %w", line, err)
		}
		p, err := NewPromotion(rec[0], buy, get, start, end)
		if err != nil {
			return nil, fmt.Errorf("promotions line %d: %w", line, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadFiles reads both tables from disk and builds a catalog.
func LoadFiles(productsPath, promotionsPath string, now func() time.Time) (*Catalog, error) {
	promotions, err := readFile(promotionsPath, ReadPromotions)
	if err != nil {
		return nil, err
	}
	products, err := readFile(productsPath, ReadProducts)
	if err != nil {
		return nil, err
	}
	return New(products, promotions, now)
}

func readFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

func readTable(r io.Reader, columns int) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = columns
	reader.TrimLeadingSpace = true
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header")
		}
		return nil, err
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
	}
	return records, nil
}
