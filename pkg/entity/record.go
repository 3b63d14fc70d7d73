package entity

// TransactionRecord bundles a transaction with its owned children, as
// exchanged with the server: pulls return records, and pushing a purchase
// sends the whole record so the server can recompute nested children.
type TransactionRecord struct {
	Transaction *Transaction  `json:"transaction"`
	Positions   []*Position   `json:"positions,omitempty"`
	Attachments []*Attachment `json:"attachments,omitempty"`
}

func (r TransactionRecord) Clone() TransactionRecord {
	out := TransactionRecord{Transaction: r.Transaction.Clone()}
	for _, p := range r.Positions {
		out.Positions = append(out.Positions, p.Clone())
	}
	for _, a := range r.Attachments {
		out.Attachments = append(out.Attachments, a.Clone())
	}
	return out
}
