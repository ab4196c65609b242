package router

// knownSymbols anchors the uppercase-token heuristic: tokens in this set are
// accepted as tickers without further evidence. The set covers the large
// caps a retail user is most likely to ask about; anything else still gets
// in via cashtag, company alias, or the model extraction fallback.
var knownSymbols = map[string]bool{
	"AAPL": true, "MSFT": true, "GOOGL": true, "GOOG": true, "AMZN": true,
	"NVDA": true, "META": true, "TSLA": true, "BRK.B": true, "BRK.A": true,
	"JPM": true, "V": true, "MA": true, "UNH": true, "HD": true,
	"PG": true, "XOM": true, "CVX": true, "JNJ": true, "WMT": true,
	"LLY": true, "AVGO": true, "ORCL": true, "COST": true, "ABBV": true,
	"KO": true, "PEP": true, "MRK": true, "BAC": true, "ADBE": true,
	"CRM": true, "NFLX": true, "AMD": true, "INTC": true, "TMO": true,
	"CSCO": true, "ACN": true, "MCD": true, "ABT": true, "DIS": true,
	"WFC": true, "QCOM": true, "TXN": true, "VZ": true, "IBM": true,
	"GE": true, "CAT": true, "PFE": true, "NKE": true, "AMAT": true,
	"UBER": true, "PYPL": true, "SQ": true, "SHOP": true, "SNOW": true,
	"PLTR": true, "COIN": true, "ABNB": true, "SOFI": true, "RIVN": true,
	"LCID": true, "NIO": true, "BABA": true, "TSM": true, "ASML": true,
	"MU": true, "ARM": true, "SMCI": true, "DELL": true, "HPQ": true,
	"F": true, "GM": true, "T": true, "CMCSA": true, "SBUX": true,
	"SPY": true, "QQQ": true, "VOO": true, "VTI": true, "DIA": true,
}

// companyAliases maps lowercase company names, including common two-word
// forms, onto their primary US listing.
var companyAliases = map[string]string{
	"apple":              "AAPL",
	"microsoft":          "MSFT",
	"google":             "GOOGL",
	"alphabet":           "GOOGL",
	"amazon":             "AMZN",
	"nvidia":             "NVDA",
	"meta":               "META",
	"facebook":           "META",
	"tesla":              "TSLA",
	"berkshire":          "BRK.B",
	"berkshire hathaway": "BRK.B",
	"jpmorgan":           "JPM",
	"jp morgan":          "JPM",
	"visa":               "V",
	"mastercard":         "MA",
	"unitedhealth":       "UNH",
	"exxon":              "XOM",
	"chevron":            "CVX",
	"walmart":            "WMT",
	"johnson":            "JNJ",
	"johnson & johnson":  "JNJ",
	"eli lilly":          "LLY",
	"lilly":              "LLY",
	"broadcom":           "AVGO",
	"oracle":             "ORCL",
	"costco":             "COST",
	"coca cola":          "KO",
	"coca-cola":          "KO",
	"pepsi":              "PEP",
	"pepsico":            "PEP",
	"merck":              "MRK",
	"adobe":              "ADBE",
	"salesforce":         "CRM",
	"netflix":            "NFLX",
	"intel":              "INTC",
	"cisco":              "CSCO",
	"mcdonalds":          "MCD",
	"disney":             "DIS",
	"qualcomm":           "QCOM",
	"verizon":            "VZ",
	"caterpillar":        "CAT",
	"pfizer":             "PFE",
	"nike":               "NKE",
	"uber":               "UBER",
	"paypal":             "PYPL",
	"shopify":            "SHOP",
	"snowflake":          "SNOW",
	"palantir":           "PLTR",
	"coinbase":           "COIN",
	"airbnb":             "ABNB",
	"alibaba":            "BABA",
	"servicenow":         "NOW",
	"starbucks":          "SBUX",
	"boeing":             "BA",
	"ford":               "F",
	"general motors":     "GM",
}

// tickerStopwords rejects uppercase tokens that read like tickers but are
// almost always ordinary words or finance jargon in user questions. NOW and
// ALL are real tickers but far more often words; their companies stay
// reachable through aliases, cashtags, or the model fallback.
var tickerStopwords = map[string]bool{
	"A": true, "I": true, "AM": true, "AN": true, "AND": true, "ANY": true,
	"ARE": true, "AS": true, "AT": true, "BE": true, "BIG": true, "BUY": true,
	"CAN": true, "CEO": true, "CFO": true, "DID": true, "DIP": true, "DO": true, "DOES": true,
	"EPS": true, "ETF": true, "FOR": true, "GDP": true, "GET": true, "GO": true,
	"GOOD": true, "HAS": true, "HOLD": true, "HOW": true, "IF": true, "IN": true,
	"IPO": true, "IS": true, "IT": true, "ITS": true, "LOW": true, "ME": true,
	"MY": true, "NO": true, "NOT": true, "NOW": true, "OF": true, "OK": true,
	"ON": true, "OR": true, "OTC": true, "PE": true, "PER": true, "SEC": true,
	"SELL": true, "SO": true, "THE": true, "TIP": true, "TO": true, "TOP": true,
	"UP": true, "US": true, "USA": true, "USD": true, "VS": true, "WAS": true,
	"WHAT": true, "WHO": true, "WHY": true, "WILL": true, "YOY": true,
	"ALL": true, "AI": true, "YOLO": true,
}
