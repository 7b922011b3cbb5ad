package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// Mongo is a Store backed by a MongoDB database.
type Mongo struct {
	client       *mongo.Client
	products     *mongo.Collection
	transactions *mongo.Collection
	refunds      *mongo.Collection
	users        *mongo.Collection
	counters     *mongo.Collection
}

var _ Store = (*Mongo)(nil)

type mongoProduct struct {
	ID        int64     `bson:"_id"`
	Name      string    `bson:"name"`
	SKU       string    `bson:"sku"`
	Category  string    `bson:"category"`
	Price     int64     `bson:"price"`
	Stock     int       `bson:"stock"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type mongoLine struct {
	ProductID int64  `bson:"productId"`
	Name      string `bson:"name"`
	UnitPrice int64  `bson:"unitPrice"`
	Quantity  int    `bson:"quantity"`
	Category  string `bson:"category"`
	Reason    string `bson:"reason,omitempty"`
	Amount    int64  `bson:"refundAmount,omitempty"`
}

type mongoTransaction struct {
	ID            string      `bson:"_id"`
	Seq           int64       `bson:"seq"`
	Date          time.Time   `bson:"date"`
	Items         []mongoLine `bson:"items"`
	Subtotal      int64       `bson:"subtotal"`
	Discount      int64       `bson:"discount"`
	Tax           int64       `bson:"tax"`
	Total         int64       `bson:"total"`
	DiscountBps   int         `bson:"discountBps"`
	TaxBps        int         `bson:"taxBps"`
	PaymentMethod string      `bson:"paymentMethod"`
	Status        string      `bson:"status"`
	ProcessedBy   string      `bson:"processedBy"`
	CustomerName  string      `bson:"customerName,omitempty"`
	CustomerEmail string      `bson:"customerEmail,omitempty"`
}

type mongoRefund struct {
	ID                    string      `bson:"_id"`
	Seq                   int64       `bson:"seq"`
	OriginalTransactionID string      `bson:"original_transaction_id"`
	Date                  time.Time   `bson:"date"`
	Items                 []mongoLine `bson:"items"`
	Total                 int64       `bson:"total"`
	Status                string      `bson:"status"`
	ProcessedBy           string      `bson:"processedBy"`
	CustomerName          string      `bson:"customerName"`
}

type mongoUser struct {
	ID                 string    `bson:"_id"`
	FullName           string    `bson:"fullName"`
	Email              string    `bson:"email"`
	EmailLower         string    `bson:"emailLower"`
	Username           string    `bson:"username"`
	UsernameLower      string    `bson:"usernameLower"`
	BirthDate          string    `bson:"birthDate"`
	PasswordHash       string    `bson:"passwordHash"`
	SecurityQuestion   string    `bson:"securityQuestion"`
	SecurityAnswerHash string    `bson:"securityAnswerHash"`
	CreatedAt          time.Time `bson:"createdAt"`
	UpdatedAt          time.Time `bson:"updatedAt"`
}

// NewMongo connects to uri, selects database and ensures indexes.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	db := client.Database(database)
	m := &Mongo{
		client:       client,
		products:     db.Collection("products"),
		transactions: db.Collection("transactions"),
		refunds:      db.Collection("refunds"),
		users:        db.Collection("users"),
		counters:     db.Collection("counters"),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	if _, err := m.refunds.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "original_transaction_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("original_transaction_id_unique"),
	}); err != nil {
		return fmt.Errorf("refund index: %w", err)
	}
	if _, err := m.transactions.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "seq", Value: 1}}}); err != nil {
		return fmt.Errorf("transaction index: %w", err)
	}
	if _, err := m.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "emailLower", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "usernameLower", Value: 1}}, Options: unique},
	}); err != nil {
		return fmt.Errorf("user index: %w", err)
	}
	return nil
}

func (m *Mongo) nextSeq(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	return doc.Value, err
}

func toMongoProduct(p model.Product) mongoProduct {
	return mongoProduct{ID: p.ID, Name: p.Name, SKU: p.SKU, Category: p.Category, Price: p.Price,
		Stock: p.Stock, Status: string(p.Status), CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

func (d mongoProduct) toModel() model.Product {
	return model.Product{ID: d.ID, Name: d.Name, SKU: d.SKU, Category: d.Category, Price: d.Price,
		Stock: d.Stock, Status: model.ProductStatus(d.Status), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (m *Mongo) ListProducts(ctx context.Context) ([]model.Product, error) {
	cur, err := m.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var docs []mongoProduct
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	out := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (m *Mongo) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	var d mongoProduct
	err := m.products.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Product{}, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return d.toModel(), nil
}

func (m *Mongo) CreateProduct(ctx context.Context, p model.Product) error {
	_, err := m.products.InsertOne(ctx, toMongoProduct(p))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("product %d: %w", p.ID, model.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (m *Mongo) UpdateProduct(ctx context.Context, p model.Product) error {
	res, err := m.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, toMongoProduct(p))
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product %d: %w", p.ID, model.ErrNotFound)
	}
	return nil
}

func (m *Mongo) DeleteProduct(ctx context.Context, id int64) error {
	res, err := m.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// AdjustStock applies guarded $inc updates one product at a time and undoes
// the applied ones if a later product fails.
func (m *Mongo) AdjustStock(ctx context.Context, deltas []model.StockDelta) error {
	merged := mergeDeltas(deltas)
	applied := make([]model.StockDelta, 0, len(merged))
	rollback := func() {
		for _, d := range applied {
			_, _ = m.products.UpdateOne(context.WithoutCancel(ctx), bson.M{"_id": d.ProductID}, bson.M{"$inc": bson.M{"stock": -d.Delta}})
		}
	}
	for _, d := range merged {
		filter := bson.M{"_id": d.ProductID, "stock": bson.M{"$gte": -d.Delta}}
		update := bson.M{"$inc": bson.M{"stock": d.Delta}, "$set": bson.M{"updatedAt": time.Now().UTC()}}
		err := m.products.FindOneAndUpdate(ctx, filter, update).Err()
		if err == nil {
			applied = append(applied, d)
			continue
		}
		rollback()
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("adjust stock %d: %w", d.ProductID, err)
		}
		p, getErr := m.GetProduct(ctx, d.ProductID)
		if getErr != nil {
			return getErr
		}
		return &model.StockError{ProductID: d.ProductID, Requested: -d.Delta, Available: p.Stock}
	}
	return nil
}

func toMongoLines(items []model.LineItem) []mongoLine {
	out := make([]mongoLine, 0, len(items))
	for _, it := range items {
		out = append(out, mongoLine{ProductID: it.ProductID, Name: it.Name, UnitPrice: it.UnitPrice, Quantity: it.Quantity, Category: it.Category})
	}
	return out
}

func (l mongoLine) lineItem() model.LineItem {
	return model.LineItem{ProductID: l.ProductID, Name: l.Name, UnitPrice: l.UnitPrice, Quantity: l.Quantity, Category: l.Category}
}

func (d mongoTransaction) toModel() model.Transaction {
	items := make([]model.LineItem, 0, len(d.Items))
	for _, l := range d.Items {
		items = append(items, l.lineItem())
	}
	return model.Transaction{
		ID: d.ID, Date: d.Date, Items: items, Subtotal: d.Subtotal, Discount: d.Discount, Tax: d.Tax, Total: d.Total,
		DiscountBps: d.DiscountBps, TaxBps: d.TaxBps, PaymentMethod: model.PaymentMethod(d.PaymentMethod),
		Status: model.TransactionStatus(d.Status), ProcessedBy: d.ProcessedBy,
		CustomerName: d.CustomerName, CustomerEmail: d.CustomerEmail,
	}
}

func (m *Mongo) AppendTransaction(ctx context.Context, t model.Transaction) error {
	seq, err := m.nextSeq(ctx, "transactions")
	if err != nil {
		return fmt.Errorf("transaction seq: %w", err)
	}
	_, err = m.transactions.InsertOne(ctx, mongoTransaction{
		ID: t.ID, Seq: seq, Date: t.Date, Items: toMongoLines(t.Items), Subtotal: t.Subtotal, Discount: t.Discount,
		Tax: t.Tax, Total: t.Total, DiscountBps: t.DiscountBps, TaxBps: t.TaxBps, PaymentMethod: string(t.PaymentMethod),
		Status: string(t.Status), ProcessedBy: t.ProcessedBy, CustomerName: t.CustomerName, CustomerEmail: t.CustomerEmail,
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("transaction %s: %w", t.ID, model.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (m *Mongo) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	var d mongoTransaction
	err := m.transactions.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return d.toModel(), nil
}

func (m *Mongo) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	cur, err := m.transactions.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var docs []mongoTransaction
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	out := make([]model.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (d mongoRefund) toModel() model.Refund {
	items := make([]model.RefundItem, 0, len(d.Items))
	for _, l := range d.Items {
		items = append(items, model.RefundItem{LineItem: l.lineItem(), Reason: model.RefundReason(l.Reason), Amount: l.Amount})
	}
	return model.Refund{
		ID: d.ID, OriginalTransactionID: d.OriginalTransactionID, Date: d.Date, Items: items, Total: d.Total,
		Status: model.RefundStatus(d.Status), ProcessedBy: d.ProcessedBy, CustomerName: d.CustomerName,
	}
}

func (m *Mongo) AppendRefund(ctx context.Context, rf model.Refund) error {
	seq, err := m.nextSeq(ctx, "refunds")
	if err != nil {
		return fmt.Errorf("refund seq: %w", err)
	}
	lines := make([]mongoLine, 0, len(rf.Items))
	for _, it := range rf.Items {
		l := toMongoLines([]model.LineItem{it.LineItem})[0]
		l.Reason = string(it.Reason)
		l.Amount = it.Amount
		lines = append(lines, l)
	}
	_, err = m.refunds.InsertOne(ctx, mongoRefund{
		ID: rf.ID, Seq: seq, OriginalTransactionID: rf.OriginalTransactionID, Date: rf.Date, Items: lines,
		Total: rf.Total, Status: string(rf.Status), ProcessedBy: rf.ProcessedBy, CustomerName: rf.CustomerName,
	})
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), "original_transaction_id") {
			return fmt.Errorf("transaction %s: %w", rf.OriginalTransactionID, model.ErrAlreadyRefunded)
		}
		return fmt.Errorf("refund %s: %w", rf.ID, model.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("append refund: %w", err)
	}
	return nil
}

func (m *Mongo) findRefund(ctx context.Context, filter bson.M) (model.Refund, error) {
	var d mongoRefund
	if err := m.refunds.FindOne(ctx, filter).Decode(&d); err != nil {
		return model.Refund{}, err
	}
	return d.toModel(), nil
}

func (m *Mongo) GetRefund(ctx context.Context, id string) (model.Refund, error) {
	rf, err := m.findRefund(ctx, bson.M{"_id": id})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Refund{}, fmt.Errorf("refund %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Refund{}, fmt.Errorf("get refund %s: %w", id, err)
	}
	return rf, nil
}

func (m *Mongo) RefundForTransaction(ctx context.Context, txID string) (model.Refund, bool, error) {
	rf, err := m.findRefund(ctx, bson.M{"original_transaction_id": txID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Refund{}, false, nil
	}
	if err != nil {
		return model.Refund{}, false, fmt.Errorf("refund for %s: %w", txID, err)
	}
	return rf, true, nil
}

func (m *Mongo) ListRefunds(ctx context.Context) ([]model.Refund, error) {
	cur, err := m.refunds.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	var docs []mongoRefund
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode refunds: %w", err)
	}
	out := make([]model.Refund, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (m *Mongo) CreateUser(ctx context.Context, u model.User) error {
	_, err := m.users.InsertOne(ctx, mongoUser{
		ID: u.ID, FullName: u.FullName, Email: u.Email, EmailLower: strings.ToLower(u.Email),
		Username: u.Username, UsernameLower: strings.ToLower(u.Username), BirthDate: u.BirthDate,
		PasswordHash: u.PasswordHash, SecurityQuestion: u.SecurityQuestion, SecurityAnswerHash: u.SecurityAnswerHash,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s: %w", u.Email, model.ErrDuplicateID)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (m *Mongo) findUser(ctx context.Context, filter bson.M, label string) (model.User, error) {
	var d mongoUser
	err := m.users.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, fmt.Errorf("user %s: %w", label, model.ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", label, err)
	}
	return model.User{
		ID: d.ID, FullName: d.FullName, Email: d.Email, Username: d.Username, BirthDate: d.BirthDate,
		PasswordHash: d.PasswordHash, SecurityQuestion: d.SecurityQuestion, SecurityAnswerHash: d.SecurityAnswerHash,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}, nil
}

func (m *Mongo) GetUserByID(ctx context.Context, id string) (model.User, error) {
	return m.findUser(ctx, bson.M{"_id": id}, id)
}

func (m *Mongo) GetUserByLogin(ctx context.Context, identifier string) (model.User, error) {
	login := strings.ToLower(strings.TrimSpace(identifier))
	return m.findUser(ctx, bson.M{"$or": bson.A{bson.M{"emailLower": login}, bson.M{"usernameLower": login}}}, login)
}

func (m *Mongo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := m.users.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *Mongo) Close() error { return m.client.Disconnect(context.Background()) }
