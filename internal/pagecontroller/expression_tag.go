package pagecontroller

import (
	"github.com/conneroisu/tagdoc/internal/expression"
)

// ExpressionEvaluationTag renders the result of an access path evaluated
// against the data bound to the tree. Its body is ignored.
//
//	<dyn:expr name="title" expression="page->getTitle()"/>
type ExpressionEvaluationTag struct {
	*DomNode
	expr *expression.Expression
}

// NewExpressionEvaluationTag creates an empty expression tag.
func NewExpressionEvaluationTag() *ExpressionEvaluationTag {
	t := &ExpressionEvaluationTag{}
	t.DomNode = newDomNode(KindExpression, t)
	return t
}

// OnParseTime compiles the expression attribute.
func (t *ExpressionEvaluationTag) OnParseTime() error {
	if err := requireAttributes(t, "expression"); err != nil {
		return err
	}
	expr, err := expression.Compile(t.Attribute("expression"))
	if err != nil {
		return err
	}
	t.expr = expr
	return nil
}

// Transform evaluates the expression.
func (t *ExpressionEvaluationTag) Transform() (string, error) {
	if t.expr == nil {
		if err := t.OnParseTime(); err != nil {
			return "", err
		}
	}
	return t.expr.EvaluateString(nodeData{t})
}

// nodeData exposes a node's data lookup as an expression.DataSource.
type nodeData struct {
	node Node
}

func (d nodeData) Data(key string) (any, bool) {
	return d.node.Data(key)
}
