package aptos

// EntryFunction is the inner payload of a submission: the on-chain function
// to invoke and its arguments. Arguments are strings to preserve precision
// across JSON boundaries.
type EntryFunction struct {
	Type          string   `json:"type"` // always "entry_function_payload"
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []string `json:"arguments"`
}

// Ed25519Signature is the authenticator attached to a submission after
// signing.
type Ed25519Signature struct {
	Type      string `json:"type"` // always "ed25519_signature"
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// Submission is the full transaction payload the fullnode encodes, the signer
// signs, and the submit endpoint accepts. Numeric fields are decimal strings,
// matching the fullnode wire format.
type Submission struct {
	Sender                  string            `json:"sender"`
	SequenceNumber          string            `json:"sequence_number"`
	MaxGasAmount            string            `json:"max_gas_amount"`
	GasUnitPrice            string            `json:"gas_unit_price"`
	ExpirationTimestampSecs string            `json:"expiration_timestamp_secs"`
	Payload                 EntryFunction     `json:"payload"`
	Signature               *Ed25519Signature `json:"signature,omitempty"`
}

// TxState is the remote-side view of a submitted transaction.
type TxState string

const (
	// TxPending means the fullnode has not yet reported a terminal state.
	TxPending TxState = "pending"
	// TxSuccess means the transaction committed successfully.
	TxSuccess TxState = "success"
	// TxFailed means the transaction committed but aborted on-chain.
	TxFailed TxState = "failed"
)

type accountResponse struct {
	SequenceNumber string `json:"sequence_number"`
}

type submitResponse struct {
	Hash string `json:"hash"`
}

type txByHashResponse struct {
	Hash    string `json:"hash"`
	Success bool   `json:"success"`
}

type coinStoreResponse struct {
	Data struct {
		Coin struct {
			Value string `json:"value"`
		} `json:"coin"`
	} `json:"data"`
}
