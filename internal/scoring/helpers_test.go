package scoring

func row(id, dept, vendor, amount, date, clock string) map[string]string {
	return map[string]string{
		"transaction_id": id,
		"department":     dept,
		"vendor":         vendor,
		"amount":         amount,
		"date":           date,
		"time":           clock,
	}
}

func newTable(rows ...map[string]string) Table {
	return Table{
		Columns: append([]string(nil), RequiredColumns...),
		Rows:    rows,
	}
}

func byID(rows []*Transaction) map[string]*Transaction {
	m := make(map[string]*Transaction, len(rows))
	for _, tx := range rows {
		m[tx.TransactionID] = tx
	}
	return m
}
