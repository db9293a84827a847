package search

import "github.com/bobmcallan/networth/internal/models"

var popularStocks = []models.Suggestion{
	{Symbol: "AAPL", Name: "Apple Inc.", Exchange: "NASDAQ"},
	{Symbol: "MSFT", Name: "Microsoft Corporation", Exchange: "NASDAQ"},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Exchange: "NASDAQ"},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Exchange: "NASDAQ"},
	{Symbol: "TSLA", Name: "Tesla, Inc.", Exchange: "NASDAQ"},
	{Symbol: "META", Name: "Meta Platforms Inc.", Exchange: "NASDAQ"},
	{Symbol: "NVDA", Name: "NVIDIA Corporation", Exchange: "NASDAQ"},
	{Symbol: "JPM", Name: "JPMorgan Chase & Co.", Exchange: "NYSE"},
	{Symbol: "V", Name: "Visa Inc.", Exchange: "NYSE"},
	{Symbol: "JNJ", Name: "Johnson & Johnson", Exchange: "NYSE"},
	{Symbol: "WMT", Name: "Walmart Inc.", Exchange: "NYSE"},
	{Symbol: "PG", Name: "Procter & Gamble Co.", Exchange: "NYSE"},
	{Symbol: "MA", Name: "Mastercard Inc.", Exchange: "NYSE"},
	{Symbol: "DIS", Name: "The Walt Disney Company", Exchange: "NYSE"},
	{Symbol: "NFLX", Name: "Netflix, Inc.", Exchange: "NASDAQ"},
	{Symbol: "BAC", Name: "Bank of America Corp.", Exchange: "NYSE"},
	{Symbol: "XOM", Name: "Exxon Mobil Corporation", Exchange: "NYSE"},
	{Symbol: "HD", Name: "The Home Depot, Inc.", Exchange: "NYSE"},
	{Symbol: "PYPL", Name: "PayPal Holdings, Inc.", Exchange: "NASDAQ"},
	{Symbol: "INTC", Name: "Intel Corporation", Exchange: "NASDAQ"},
}

var popularCrypto = []models.Suggestion{
	{Symbol: "BTC", Name: "Bitcoin"},
	{Symbol: "ETH", Name: "Ethereum"},
	{Symbol: "BNB", Name: "Binance Coin"},
	{Symbol: "SOL", Name: "Solana"},
	{Symbol: "XRP", Name: "Ripple"},
	{Symbol: "ADA", Name: "Cardano"},
	{Symbol: "DOGE", Name: "Dogecoin"},
	{Symbol: "DOT", Name: "Polkadot"},
	{Symbol: "MATIC", Name: "Polygon"},
	{Symbol: "AVAX", Name: "Avalanche"},
	{Symbol: "LINK", Name: "Chainlink"},
	{Symbol: "UNI", Name: "Uniswap"},
	{Symbol: "LTC", Name: "Litecoin"},
	{Symbol: "ATOM", Name: "Cosmos"},
	{Symbol: "ETC", Name: "Ethereum Classic"},
	{Symbol: "XLM", Name: "Stellar"},
	{Symbol: "ALGO", Name: "Algorand"},
	{Symbol: "VET", Name: "VeChain"},
	{Symbol: "ICP", Name: "Internet Computer"},
	{Symbol: "FIL", Name: "Filecoin"},
	{Symbol: "TRX", Name: "TRON"},
	{Symbol: "EOS", Name: "EOS"},
	{Symbol: "AAVE", Name: "Aave"},
	{Symbol: "MKR", Name: "Maker"},
	{Symbol: "GRT", Name: "The Graph"},
}

var popularByKind = map[models.SymbolKind][]models.Suggestion{
	models.SymbolKindStock:  popularStocks,
	models.SymbolKindCrypto: popularCrypto,
}

// ParseKind accepts "stock" and "crypto".
func ParseKind(s string) (models.SymbolKind, bool) {
	k := models.SymbolKind(s)
	_, ok := popularByKind[k]
	return k, ok
}
