// Package export renders the automated tables as parquet files for
// consumers that prefer columnar input over the workbook.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"CryptoPulse/internal/model"
)

// File is one rendered table.
type File struct {
	Name string
	Data []byte
}

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

type marketRecord struct {
	FetchedAt         int64    `parquet:"name=fetched_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Rank              *int32   `parquet:"name=rank, type=INT32, repetitiontype=OPTIONAL"`
	CoinID            string   `parquet:"name=coin_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol            string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name              string   `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price             *float64 `parquet:"name=price, type=DOUBLE, repetitiontype=OPTIONAL"`
	MarketCap         *float64 `parquet:"name=market_cap, type=DOUBLE, repetitiontype=OPTIONAL"`
	Volume24h         *float64 `parquet:"name=volume_24h, type=DOUBLE, repetitiontype=OPTIONAL"`
	Dominance         *float64 `parquet:"name=market_dominance, type=DOUBLE, repetitiontype=OPTIONAL"`
	Change24h         *float64 `parquet:"name=change_24h, type=DOUBLE, repetitiontype=OPTIONAL"`
	Change7d          *float64 `parquet:"name=change_7d, type=DOUBLE, repetitiontype=OPTIONAL"`
	Change30d         *float64 `parquet:"name=change_30d, type=DOUBLE, repetitiontype=OPTIONAL"`
	Change1y          *float64 `parquet:"name=change_1y, type=DOUBLE, repetitiontype=OPTIONAL"`
	CirculatingSupply *float64 `parquet:"name=circulating_supply, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalSupply       *float64 `parquet:"name=total_supply, type=DOUBLE, repetitiontype=OPTIONAL"`
	MaxSupply         *float64 `parquet:"name=max_supply, type=DOUBLE, repetitiontype=OPTIONAL"`
	ATH               *float64 `parquet:"name=ath, type=DOUBLE, repetitiontype=OPTIONAL"`
	ATHDate           *int64   `parquet:"name=ath_date, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`
	ATL               *float64 `parquet:"name=atl, type=DOUBLE, repetitiontype=OPTIONAL"`
	ATLDate           *int64   `parquet:"name=atl_date, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL"`
}

type globalRecord struct {
	FetchedAt            int64    `parquet:"name=fetched_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Status               string   `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalMarketCap       *float64 `parquet:"name=total_market_cap, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalVolume          *float64 `parquet:"name=total_volume, type=DOUBLE, repetitiontype=OPTIONAL"`
	BTCDominance         *float64 `parquet:"name=btc_dominance, type=DOUBLE, repetitiontype=OPTIONAL"`
	ETHDominance         *float64 `parquet:"name=eth_dominance, type=DOUBLE, repetitiontype=OPTIONAL"`
	ActiveCryptocurrency *float64 `parquet:"name=active_cryptocurrencies, type=DOUBLE, repetitiontype=OPTIONAL"`
	Markets              *float64 `parquet:"name=markets, type=DOUBLE, repetitiontype=OPTIONAL"`
	MarketCapChange24h   *float64 `parquet:"name=market_cap_change_24h, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type sentimentRecord struct {
	Date           int32   `parquet:"name=date, type=INT32, convertedtype=DATE"`
	Value          float64 `parquet:"name=value, type=DOUBLE"`
	Classification string  `parquet:"name=classification, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type historyRecord struct {
	CoinID      string   `parquet:"name=coin_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol      string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date        int32    `parquet:"name=date, type=INT32, convertedtype=DATE"`
	Price       *float64 `parquet:"name=price, type=DOUBLE, repetitiontype=OPTIONAL"`
	Volume      *float64 `parquet:"name=volume, type=DOUBLE, repetitiontype=OPTIONAL"`
	MarketCap   *float64 `parquet:"name=market_cap, type=DOUBLE, repetitiontype=OPTIONAL"`
	DailyReturn *float64 `parquet:"name=daily_return, type=DOUBLE, repetitiontype=OPTIONAL"`
	MA7         *float64 `parquet:"name=ma_7d, type=DOUBLE, repetitiontype=OPTIONAL"`
	MA30        *float64 `parquet:"name=ma_30d, type=DOUBLE, repetitiontype=OPTIONAL"`
	Volatility7 *float64 `parquet:"name=volatility_7d, type=DOUBLE, repetitiontype=OPTIONAL"`
}

type priceRecord struct {
	FetchedAt int64   `parquet:"name=fetched_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	CoinID    string  `parquet:"name=coin_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price     float64 `parquet:"name=price, type=DOUBLE"`
}

// Parquet renders every automated table. compression is snappy, gzip or
// anything else for uncompressed.
func Parquet(ds *model.Dataset, compression string) ([]File, error) {
	fetched := ds.FetchedAt.UnixMilli()

	market := make([]any, 0, len(ds.Snapshots))
	for _, s := range ds.Snapshots {
		rec := marketRecord{
			FetchedAt:         fetched,
			CoinID:            s.ID,
			Symbol:            s.Symbol,
			Name:              s.Name,
			Price:             opt(s.Price),
			MarketCap:         opt(s.MarketCap),
			Volume24h:         opt(s.Volume24h),
			Dominance:         opt(s.Dominance),
			Change24h:         opt(s.Change24h),
			Change7d:          opt(s.Change7d),
			Change30d:         opt(s.Change30d),
			Change1y:          opt(s.Change1y),
			CirculatingSupply: opt(s.CirculatingSupply),
			TotalSupply:       opt(s.TotalSupply),
			MaxSupply:         opt(s.MaxSupply),
			ATH:               opt(s.ATH),
			ATHDate:           optTime(s.ATHDate),
			ATL:               opt(s.ATL),
			ATLDate:           optTime(s.ATLDate),
		}
		if s.Rank > 0 {
			r := int32(s.Rank)
			rec.Rank = &r
		}
		market = append(market, rec)
	}

	g := ds.Global
	status := "ok"
	if !g.Available {
		status = "unavailable"
	}
	global := []any{globalRecord{
		FetchedAt:            fetched,
		Status:               status,
		TotalMarketCap:       opt(g.TotalMarketCap),
		TotalVolume:          opt(g.TotalVolume),
		BTCDominance:         opt(g.BTCDominance),
		ETHDominance:         opt(g.ETHDominance),
		ActiveCryptocurrency: opt(g.ActiveCryptocurrency),
		Markets:              opt(g.Markets),
		MarketCapChange24h:   opt(g.MarketCapChange24h),
	}}

	sentiment := make([]any, 0, len(ds.Sentiment))
	for _, p := range ds.Sentiment {
		sentiment = append(sentiment, sentimentRecord{
			Date:           epochDay(p.Date),
			Value:          p.Score,
			Classification: p.Classification,
		})
	}

	history := make([]any, 0, ds.HistoryRows())
	for _, h := range ds.Histories {
		for _, p := range h.Points {
			history = append(history, historyRecord{
				CoinID:      h.Coin.ID,
				Symbol:      h.Coin.Symbol,
				Date:        epochDay(p.Date),
				Price:       opt(p.Price),
				Volume:      opt(p.Volume),
				MarketCap:   opt(p.MarketCap),
				DailyReturn: opt(p.DailyReturn),
				MA7:         opt(p.MA7),
				MA30:        opt(p.MA30),
				Volatility7: opt(p.Volatility7),
			})
		}
	}

	prices := make([]any, 0, len(ds.Prices))
	for _, q := range ds.Prices {
		prices = append(prices, priceRecord{FetchedAt: fetched, CoinID: q.CoinID, Price: q.Price})
	}

	tables := []struct {
		name    string
		schema  any
		records []any
	}{
		{"market_overview.parquet", new(marketRecord), market},
		{"global_metrics.parquet", new(globalRecord), global},
		{"fear_greed.parquet", new(sentimentRecord), sentiment},
		{"history.parquet", new(historyRecord), history},
		{"portfolio_prices.parquet", new(priceRecord), prices},
	}

	files := make([]File, 0, len(tables))
	for _, t := range tables {
		data, err := encode(t.schema, t.records, compression)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.name, err)
		}
		files = append(files, File{Name: t.name, Data: data})
	}
	return files, nil
}

func encode(schema any, records []any, compression string) ([]byte, error) {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, schema, 1)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}

	switch strings.ToLower(compression) {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, rec := range records {
		if err := pw.Write(rec); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return mem.Bytes(), nil
}

func opt(v float64) *float64 {
	if model.IsMissing(v) {
		return nil
	}
	return &v
}

func optTime(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func epochDay(t time.Time) int32 {
	return int32(t.UTC().Unix() / 86400)
}
